package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-reward-bot/internal/handler"
)

func reject(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, handler.NewErrorResponse(code, msg))
}

// AuthMiddleware guards the operator API with static keys. The bearer key
// opens every /api route; mutating routes also need the admin key.
type AuthMiddleware struct {
	apiKey   string
	adminKey string
}

func NewAuthMiddleware(apiKey, adminKey string) *AuthMiddleware {
	if adminKey == "" {
		adminKey = apiKey
	}
	return &AuthMiddleware{apiKey: apiKey, adminKey: adminKey}
}

func (m *AuthMiddleware) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		if authz == "" {
			return reject(c, http.StatusUnauthorized, handler.CodeUnauthorized, "authorization header required")
		}
		token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		if token == "" {
			return reject(c, http.StatusUnauthorized, handler.CodeUnauthorized, "bearer token required")
		}
		if !equalKey(token, m.apiKey) {
			return reject(c, http.StatusUnauthorized, handler.CodeInvalidToken, "invalid api key")
		}
		return next(c)
	}
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get("X-Admin-Key")
		if key == "" {
			return reject(c, http.StatusForbidden, handler.CodeForbidden, "admin key required")
		}
		if !equalKey(key, m.adminKey) {
			return reject(c, http.StatusForbidden, handler.CodeForbidden, "invalid admin key")
		}
		c.Set("admin", true)
		return next(c)
	}
}

func equalKey(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
