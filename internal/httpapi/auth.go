package httpapi

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode      string // "jwt" or "none"
	JWTSecret string
}

// userEnsurer guarantees a user row exists for foreign keys on first contact.
type userEnsurer interface {
	EnsureUser(id string) error
}

// NewAuthMiddleware returns a Fiber middleware that resolves the caller's
// user id into c.Locals("user_id").
//
// In "jwt" mode the Authorization header must carry a Bearer HS256 token
// whose sub claim is the user id. In "none" mode (dev and tests) the id
// comes from the X-User-ID header.
func NewAuthMiddleware(cfg AuthConfig, users userEnsurer, logger zerolog.Logger) fiber.Handler {
	admit := func(c *fiber.Ctx, id string) error {
		if users != nil {
			if err := users.EnsureUser(id); err != nil {
				return fmt.Errorf("failed to ensure user: %w", err)
			}
		}
		c.Locals("user_id", id)
		return c.Next()
	}

	return func(c *fiber.Ctx) error {
		if cfg.Mode == "none" {
			userID := c.Get("X-User-ID")
			if userID == "" {
				return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
			}
			return admit(c, userID)
		}

		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			logger.Warn().Err(err).Str("path", c.Path()).Msg("rejected invalid token")
			return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		return admit(c, sub)
	}
}

// userID returns the authenticated user id set by the auth middleware.
func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
