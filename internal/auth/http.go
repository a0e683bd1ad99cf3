// ABOUTME: Echo middleware for JWT authentication on HTTP and WebSocket endpoints
// ABOUTME: Extracts JWT from Authorization header or token query parameter and adds identity to context

package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// AllowQueryToken accepts ?token= when no Authorization header is set.
	// Browsers cannot attach headers to WebSocket upgrade requests.
	AllowQueryToken bool
}

// Middleware returns echo middleware that verifies the caller's JWT and
// stores the resulting Identity in both the echo context and the request
// context.
func Middleware(verifier TokenVerifier, opts MiddlewareOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			token, errMsg := extractBearerToken(req.Header.Get(echo.HeaderAuthorization))
			if errMsg != "" && opts.AllowQueryToken {
				if q := c.QueryParam("token"); q != "" {
					token, errMsg = q, ""
				}
			}
			if errMsg != "" {
				return echo.NewHTTPError(http.StatusUnauthorized, errMsg)
			}

			id, err := verifier.Verify(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(identityContextKey, id)
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			return next(c)
		}
	}
}

const identityContextKey = "auth.identity"

// IdentityFrom returns the identity established by Middleware.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityContextKey).(Identity)
	if ok {
		return id, true
	}
	return FromContext(c.Request().Context())
}
