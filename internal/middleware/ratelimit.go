package middleware

import (
	"strconv"
	"time"

	"whatsapp-gateway/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimit returns a Fiber middleware throttling requests per client IP,
// backed by the same sliding-window limiter that guards recipients. Health
// and metrics probes bypass it.
func RateLimit(max int, window time.Duration) fiber.Handler {
	limiter := ratelimit.NewLimiter(max, window)

	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" || c.Path() == "/metrics" {
			return c.Next()
		}

		if !limiter.Allow(c.IP()) {
			c.Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
		}

		return c.Next()
	}
}
