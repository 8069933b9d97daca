package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/anipipe/api/pkg/response"
)

// RateLimiter throttles job-start endpoints per user. A nil redis client
// disables limiting entirely, which is the default single-user setup.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.redis == nil {
			return c.Next()
		}

		username := GetUsername(c)
		if username == "" {
			return c.Next() // auth middleware should have caught this
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, username)
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request
			return c.Next()
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// StartLimit returns a rate limiter for single job-start endpoints.
func (rl *RateLimiter) StartLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("start", maxPerHour, time.Hour)
}

// BulkLimit returns a rate limiter for bulk-start endpoints.
func (rl *RateLimiter) BulkLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("bulk", maxPerHour, time.Hour)
}
