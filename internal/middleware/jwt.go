package middleware // middleware holds the echo middleware shared by the operator API

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    CtxUserID    = "user_id"
    CtxRole      = "role"
    CtxTheaterID = "theater_id"
)

// JWTAuth validates a Bearer access token and stores the caller's id,
// role and theater scope in the echo context.  Numeric claims arrive as
// float64 from encoding/json and are stored as uint64.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            uid, ok := claimUint(claims["sub"])
            if !ok || uid == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
            }
            role, _ := claims["role"].(string)
            theaterID, _ := claimUint(claims["theater_id"])

            c.Set(CtxUserID, uid)
            c.Set(CtxRole, role)
            c.Set(CtxTheaterID, theaterID)
            return next(c)
        }
    }
}

func claimUint(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case float64:
        if t < 0 {
            return 0, false
        }
        return uint64(t), true
    case int64:
        return uint64(t), t >= 0
    case uint64:
        return t, true
    }
    return 0, false
}
