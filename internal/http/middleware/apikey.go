package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

const (
	// APIKeyHeader carries the shared credential.
	APIKeyHeader = "X-API-Key"
	// APIKeyQueryParam is the fallback for clients that cannot set headers.
	APIKeyQueryParam = "api_key"
)

// APIKey gates routes behind a single shared credential. The check runs
// before the rate limiter and validators so unauthenticated callers learn
// nothing about quota or validation state.
func APIKey(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			// Service misconfiguration; do not fail open.
			return fiber.NewError(fiber.StatusInternalServerError, "api key not configured")
		}

		supplied := c.Get(APIKeyHeader)
		if supplied == "" {
			supplied = c.Query(APIKeyQueryParam)
		}
		if supplied == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing api key")
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}

		return c.Next()
	}
}
