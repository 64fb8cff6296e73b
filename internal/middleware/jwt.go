package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
)

// IdentityKey is the context key under which JWTAuth stores the
// authenticated auth.Identity.
const IdentityKey = "identity"

// JWTAuth returns an Echo middleware that validates a Bearer session
// token and injects the resulting auth.Identity into the request
// context.  The provided secret must match the one used when issuing
// tokens.  Protected routes should be wrapped with this middleware so
// handlers can obtain the caller via CurrentIdentity.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the token.
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			id, err := auth.ParseToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(IdentityKey, &id)
			return next(c)
		}
	}
}

// CurrentIdentity retrieves the authenticated identity placed in the
// context by JWTAuth.  The second return value is false when the
// route was not wrapped with JWTAuth.
func CurrentIdentity(c echo.Context) (*auth.Identity, bool) {
	id, ok := c.Get(IdentityKey).(*auth.Identity)
	return id, ok
}
