package middleware // reusable HTTP middleware for the API

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/utils"
)

var errNoBearer = errors.New("missing bearer token")

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the user ID (uint64) and role (string) in the context under
// "user_id" and "role".  Handlers read them through UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if msg := authenticate(c, secret); msg != "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}
			return next(c)
		}
	}
}

// OptionalJWT sets the identity when a valid bearer token is present and
// otherwise lets the request through anonymously.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_ = authenticate(c, secret)
			return next(c)
		}
	}
}

// authenticate returns an error message, or "" once the identity is set.
func authenticate(c echo.Context, secret string) string {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return errNoBearer.Error()
	}
	claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return "invalid token"
	}
	uid, err := claims.UserID()
	if err != nil {
		return "invalid claims"
	}
	c.Set("user_id", uid)
	c.Set("role", claims.Role)
	return ""
}
