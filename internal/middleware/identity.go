package middleware

// identity.go exposes the values JWTAuth stores in the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// UserID returns the authenticated user's ID.  ok is false for anonymous
// requests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get("user_id").(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" when anonymous.
func Role(c echo.Context) model.Role {
	r, _ := c.Get("role").(string)
	return model.Role(r)
}

// userKey is the rate limit and log identity: the user ID or "anon".
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
