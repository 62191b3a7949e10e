package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// AdminAuth guards the control API with a static bearer token.
type AdminAuth struct {
	token     string
	allowOpen bool
}

// NewAdminAuth creates a new admin auth middleware. With an empty token
// every request passes when allowOpen is set and is rejected otherwise.
func NewAdminAuth(token string, allowOpen bool) *AdminAuth {
	return &AdminAuth{token: token, allowOpen: allowOpen}
}

// RequireToken rejects requests without a matching Authorization header.
func (m *AdminAuth) RequireToken(c fiber.Ctx) error {
	if m.token == "" {
		if m.allowOpen {
			return c.Next()
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "error",
			"message": "admin token is not configured",
		})
	}

	got, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "unauthorized",
		})
	}

	return c.Next()
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" value.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
