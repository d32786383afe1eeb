package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenValidator resolves an access token to a user id. *Service implements it.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// JWTMiddleware validates bearer tokens and stores user_id in locals.
func JWTMiddleware(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

// APIKeyMiddleware requires the public anon key in the apikey header. With
// no key configured every request passes; the health report flags that.
func APIKeyMiddleware(anonKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if anonKey == "" {
			return c.Next()
		}
		if !keysEqual(c.Get("apikey"), anonKey) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}
		return c.Next()
	}
}

// ServiceKeyMiddleware guards admin routes with the elevated service-role
// key. Without a configured key the admin surface is closed.
func ServiceKeyMiddleware(serviceKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if serviceKey == "" {
			return fiber.NewError(fiber.StatusForbidden, "admin access is not configured")
		}
		if !keysEqual(c.Get("X-Service-Key"), serviceKey) {
			return fiber.NewError(fiber.StatusForbidden, "invalid service key")
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id set by JWTMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func keysEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
