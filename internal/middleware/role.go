package middleware

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/theater-qr-provisioning/internal/model"
)

// RequireRole aborts with 403 unless the role claim stored by JWTAuth is
// one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !allowed[Role(c)] {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}

// RequireTheaterScope checks the :param path value against the caller's
// theater claim.  Admins pass for every theater; an operator only for
// its own.  It must run before the response cache.
func RequireTheaterScope(param string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, err := strconv.ParseUint(c.Param(param), 10, 64)
            if err != nil || id == 0 {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + param})
            }
            if Role(c) == model.RoleAdmin {
                return next(c)
            }
            if scope := TheaterScope(c); scope == 0 || scope != id {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
