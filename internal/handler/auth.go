package handler

import (
	"context"      // context bounds database calls
	"database/sql" // sql.ErrNoRows marks unknown users
	"errors"       // errors matches repository sentinels
	"net/http"     // http defines status code constants
	"strings"      // strings trims tokens and roles
	"time"         // time types token expiries

	"github.com/golang-jwt/jwt/v5" // jwt parses the optional bearer token on logout
	"github.com/labstack/echo/v4"  // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/config"     // config holds secrets and TTLs
	"github.com/iliyamo/theater-qr-provisioning/internal/middleware" // middleware exposes the caller identity
	"github.com/iliyamo/theater-qr-provisioning/internal/model"      // model defines User and roles
	"github.com/iliyamo/theater-qr-provisioning/internal/repository" // repository persists users and tokens
	"github.com/iliyamo/theater-qr-provisioning/internal/utils"      // utils hashes passwords and issues tokens
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config           // secrets and token lifetimes
	Users    *repository.UserRepo    // operator accounts
	Tokens   *repository.TokenRepo   // refresh tokens
	Theaters *repository.TheaterRepo // checks a new operator's venue
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, th *repository.TheaterRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Theaters: th}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"omitempty,oneof=ADMIN OPERATOR"`
	TheaterID uint64 `json:"theater_id"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TheaterID uint64 `json:"theater_id,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register: an admin creates an operator pinned to a theater, or another
// admin.  The new account logs in on its own; no tokens are returned.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = utils.NormalizeEmail(req.Email)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Role == "" { // default to the scoped role
		req.Role = model.RoleOperator
	}
	if err := utils.Validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid fields", "fields": utils.ValidationFields(err)})
	}
	switch {
	case req.Role == model.RoleOperator && req.TheaterID == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "operators need a theater_id"})
	case req.Role == model.RoleAdmin:
		req.TheaterID = 0 // admins are never scoped
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if req.TheaterID != 0 {
		if _, err := h.Theaters.GetByID(ctx, req.TheaterID); err != nil {
			if errors.Is(err, repository.ErrTheaterNotFound) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown theater"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}
	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.Role, req.TheaterID, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		config.LogError(config.GetLogger(), "handler", "Register", "create user", req.Email, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusCreated, userPart{ID: uid, Email: req.Email, Role: req.Role, TheaterID: req.TheaterID})
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) { // same answer for both
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := h.issueAccess(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil { // only the hash is stored
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh: rotate the refresh token and issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	userID, err := h.Tokens.Rotate(ctx, hash, utils.HashRefreshRaw(newRef.Raw), newRef.Exp) // revoke old, store new
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRefresh) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate refresh failed"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := h.issueAccess(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// RefreshAccess: validate a refresh token and return a new access token
// without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := h.issueAccess(u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one refresh token when the body carries it, or every
// token of the caller when only a bearer token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, hasBearer := h.bearerUser(c)

	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if hasBearer && refreshToken == "" { // log out everywhere
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":    middleware.UserID(c),
		"role":       middleware.Role(c),
		"theater_id": middleware.TheaterScope(c),
	})
}

// issueAccess signs an access token carrying role and theater scope.
func (h *AuthHandler) issueAccess(u model.User) (utils.AccessToken, error) {
	return utils.NewAccessToken(h.Cfg.JWTSecret, utils.OperatorClaims{
		UserID:    u.ID,
		Role:      u.Role,
		TheaterID: u.ScopeTheaterID(),
	}, h.Cfg.AccessTTLMin)
}

// bearerUser reads the user id from an optional Authorization header.
// Logout runs outside the JWT middleware so it parses the token itself.
func (h *AuthHandler) bearerUser(c echo.Context) (uint64, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return 0, false
	}
	tok, err := jwt.Parse(strings.TrimPrefix(authHeader, "Bearer "), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok { // HS256 only
			return nil, echo.ErrUnauthorized
		}
		return []byte(h.Cfg.JWTSecret), nil
	})
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	sub, ok := claims["sub"].(float64) // JSON numbers decode as float64
	if !ok || sub <= 0 {
		return 0, false
	}
	return uint64(sub), true
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Role: u.Role, TheaterID: u.ScopeTheaterID()}
}
