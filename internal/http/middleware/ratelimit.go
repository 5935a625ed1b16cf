package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/0SalvadOr0/Intus-sub001/internal/ratelimit"
)

// RateLimit enforces one tier of the limiter, keyed by the caller's network
// address. Quota headers are set on every response so clients can mirror
// their remaining budget. On limiter backend errors the request is allowed
// through (fail-open) rather than turning an outage into a full block.
func RateLimit(limiter ratelimit.Limiter, tier ratelimit.Tier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := limiter.Allow(c.UserContext(), c.IP(), tier)
		if err != nil {
			log.Printf("rate limit check failed for %s: %v", c.IP(), err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(time.Until(res.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}
