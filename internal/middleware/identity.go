package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// UserID returns the authenticated operator id, or 0 for anonymous calls.
func UserID(c echo.Context) uint64 {
    v, _ := c.Get(CtxUserID).(uint64)
    return v
}

// Role returns the caller's role claim.
func Role(c echo.Context) string {
    v, _ := c.Get(CtxRole).(string)
    return v
}

// TheaterScope returns the theater an operator is pinned to; 0 means the
// caller may act on every theater.
func TheaterScope(c echo.Context) uint64 {
    v, _ := c.Get(CtxTheaterID).(uint64)
    return v
}

// SessionKey identifies the operator session for submission locking.  A
// client may send X-Session-ID to tell its tabs apart.
func SessionKey(c echo.Context) string {
    uid := strconv.FormatUint(UserID(c), 10)
    if s := c.Request().Header.Get("X-Session-ID"); s != "" && len(s) <= 64 {
        return uid + ":" + s
    }
    return uid
}

// userKey is the rate limit identity: the operator id or "anon".
func userKey(c echo.Context) string {
    if uid := UserID(c); uid != 0 {
        return strconv.FormatUint(uid, 10)
    }
    return "anon"
}
