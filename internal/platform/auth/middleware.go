package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Dev-mode identity headers, honored only by DevAuthMiddleware.
const (
	DevUserIDHeader = "X-User-ID"
	DevRoleHeader   = "X-User-Role"
)

// Authenticate resolves the caller's Principal from a Bearer token and stores
// it on the request context. Requests without an Authorization header pass
// through as anonymous; the policy engine decides what anonymous callers may
// see. A malformed or invalid token is rejected outright.
func Authenticate(issuer *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			principal, err := issuer.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setPrincipal(c, principal)
			return next(c)
		}
	}
}

// DevAuthMiddleware takes the caller's identity from the X-User-ID and
// X-User-Role headers instead of a signed token. Development only.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawID := c.Request().Header.Get(DevUserIDHeader)
			if rawID == "" {
				return next(c)
			}

			userID, err := uuid.Parse(rawID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid X-User-ID header")
			}
			role := strings.ToUpper(c.Request().Header.Get(DevRoleHeader))
			if !ValidRole(role) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid X-User-Role header")
			}

			setPrincipal(c, Principal{UserID: userID, Role: role})
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests. It only asserts that a caller is
// authenticated; what the caller may do is the policy engine's business.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PrincipalFromContext(c.Request().Context()).IsAnonymous() {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, p Principal) {
	ctx := context.WithValue(c.Request().Context(), principalKey, p)
	c.SetRequest(c.Request().WithContext(ctx))
}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the request's Principal, or the anonymous
// principal when none was set.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}
