package middleware

import (
    "net/http"
    "net/http/httptest"
    "reflect"
    "testing"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-qr-provisioning/internal/config"
    "github.com/iliyamo/theater-qr-provisioning/internal/model"
    "github.com/iliyamo/theater-qr-provisioning/internal/utils"
)

const testSecret = "test-secret"

func newScopedServer() *echo.Echo {
    e := echo.New()
    g := e.Group("/v1/theaters/:theater_id", JWTAuth(testSecret),
        RequireRole(model.RoleAdmin, model.RoleOperator), RequireTheaterScope("theater_id"))
    g.GET("/ping", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"user": UserID(c), "scope": TheaterScope(c)})
    })
    return e
}

func bearer(t *testing.T, claims utils.OperatorClaims) string {
    t.Helper()
    tok, err := utils.NewAccessToken(testSecret, claims, 5)
    if err != nil {
        t.Fatal(err)
    }
    return "Bearer " + tok.Token
}

func TestTheaterScope(t *testing.T) {
    e := newScopedServer()
    cases := []struct {
        name   string
        auth   string
        path   string
        status int
    }{
        {"no token", "", "/v1/theaters/7/ping", http.StatusUnauthorized},
        {"garbage token", "Bearer nope", "/v1/theaters/7/ping", http.StatusUnauthorized},
        {"operator own theater", bearer(t, utils.OperatorClaims{UserID: 3, Role: model.RoleOperator, TheaterID: 7}), "/v1/theaters/7/ping", http.StatusOK},
        {"operator other theater", bearer(t, utils.OperatorClaims{UserID: 3, Role: model.RoleOperator, TheaterID: 7}), "/v1/theaters/8/ping", http.StatusForbidden},
        {"unscoped operator", bearer(t, utils.OperatorClaims{UserID: 3, Role: model.RoleOperator}), "/v1/theaters/7/ping", http.StatusForbidden},
        {"admin any theater", bearer(t, utils.OperatorClaims{UserID: 1, Role: model.RoleAdmin}), "/v1/theaters/8/ping", http.StatusOK},
        {"unknown role", bearer(t, utils.OperatorClaims{UserID: 1, Role: "CUSTOMER", TheaterID: 7}), "/v1/theaters/7/ping", http.StatusForbidden},
        {"bad theater id", bearer(t, utils.OperatorClaims{UserID: 1, Role: model.RoleAdmin}), "/v1/theaters/x/ping", http.StatusBadRequest},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, tc.path, nil)
            if tc.auth != "" {
                req.Header.Set("Authorization", tc.auth)
            }
            rec := httptest.NewRecorder()
            e.ServeHTTP(rec, req)
            if rec.Code != tc.status {
                t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
            }
        })
    }
}

func TestCacheKeyVariesByGenerationAndTheater(t *testing.T) {
    e := echo.New()
    cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
    key := func(theater string, gen int64) string {
        req := httptest.NewRequest(http.MethodGet, "/v1/theaters/"+theater+"/codes", nil)
        c := e.NewContext(req, httptest.NewRecorder())
        c.SetPath("/v1/theaters/:theater_id/codes")
        c.SetParamNames("theater_id")
        c.SetParamValues(theater)
        c.Set(CtxUserID, uint64(1))
        c.Set(CtxRole, model.RoleAdmin)
        return cacheKeyFrom(cfg, c, gen)
    }
    if key("7", 0) == key("7", 1) {
        t.Fatal("generation bump must change the key")
    }
    if key("7", 0) == key("8", 0) {
        t.Fatal("theaters must not share keys")
    }
    if key("7", 3) != key("7", 3) {
        t.Fatal("key must be stable")
    }
}

func TestSessionKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/", nil)
    c := e.NewContext(req, httptest.NewRecorder())
    c.Set(CtxUserID, uint64(42))
    if got := SessionKey(c); got != "42" {
        t.Fatalf("SessionKey = %q", got)
    }
    req.Header.Set("X-Session-ID", "tab-2")
    if got := SessionKey(c); got != "42:tab-2" {
        t.Fatalf("SessionKey = %q", got)
    }
}

func TestKeyParts(t *testing.T) {
    tests := []struct {
        strategy string
        want     []string
    }{
        {"ip_user_route", []string{"ip", "user", "route"}},
        {"user_theater", []string{"user", "theater"}},
        {"IP", []string{"ip"}},
        {"bogus", []string{"ip", "user", "route"}},
        {"", []string{"ip", "user", "route"}},
    }
    for _, tt := range tests {
        t.Run(tt.strategy, func(t *testing.T) {
            if got := keyParts(tt.strategy); !reflect.DeepEqual(got, tt.want) {
                t.Fatalf("keyParts(%q) = %v, want %v", tt.strategy, got, tt.want)
            }
        })
    }
}

func TestRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/theaters/7/codes", nil)
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/theaters/:theater_id/codes")
    c.SetParamNames("theater_id")
    c.SetParamValues("7")
    c.Set(CtxUserID, uint64(42))

    if got := rateKey("rl:submit", keyParts("user_theater"), c); got != "rl:submit:user:42:theater:7" {
        t.Fatalf("rateKey = %q", got)
    }
    if got := rateKey("rl", []string{"route"}, c); got != "rl:route:POST /v1/theaters/:theater_id/codes" {
        t.Fatalf("rateKey = %q", got)
    }
}

func TestParseDecision(t *testing.T) {
    d, err := parseDecision([]any{int64(0), int64(0), int64(1500)})
    if err != nil {
        t.Fatal(err)
    }
    if d.allowed || d.wait != 1500*time.Millisecond {
        t.Fatalf("decision = %+v", d)
    }
    d, err = parseDecision([]any{int64(1), int64(4), int64(0)})
    if err != nil || !d.allowed || d.remaining != 4 {
        t.Fatalf("decision = %+v, err = %v", d, err)
    }
    if _, err := parseDecision([]any{"1", int64(0)}); err == nil {
        t.Fatal("short reply must fail")
    }
    if _, err := parseDecision([]any{"1", int64(0), int64(0)}); err == nil {
        t.Fatal("non-integer field must fail")
    }
}
