package middleware

// identity.go holds the context keys JWTAuth fills and the accessors the
// handlers and the per-user middleware read them through.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const (
    userIDKey = "user_id"
    roleKey   = "role"
)

// UserID returns the authenticated caller's id.  ok is false on routes that
// did not run JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
    uid, ok := c.Get(userIDKey).(uint64)
    return uid, ok && uid != 0
}

// Role returns the authenticated caller's role, or "" when absent.
func Role(c echo.Context) string {
    r, _ := c.Get(roleKey).(string)
    return r
}

// subject names the caller for per-user keys: the user id when known and
// the client IP otherwise.
func subject(c echo.Context) string {
    if uid, ok := UserID(c); ok {
        return "user:" + strconv.FormatUint(uid, 10)
    }
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    return "ip:" + ip
}
