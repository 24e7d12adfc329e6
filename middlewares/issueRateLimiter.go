package middlewares

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateCounter counts hits per key inside a fixed window.
type RateCounter interface {
	// Hit increments key and returns the new count and the time left in the window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisRateCounter keeps one expiring counter per key in Redis.
type RedisRateCounter struct {
	Client *redis.Client
}

func (r RedisRateCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	// Set TTL only for the first increment (when count = 1)
	if count == 1 {
		if err := r.Client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := r.Client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	return count, ttl, nil
}

// IssueRateLimiter caps how many issues one caller may report per window.
// It must run after AuthMiddleware.
func IssueRateLimiter(counter RateCounter, prefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "code": "auth_required"})
			return
		}

		// Create individual key for each user
		userKey := prefix + ":" + caller.UserID.Hex()

		count, retryAfter, err := counter.Hit(c.Request.Context(), userKey, window)
		if err != nil {
			slog.Error("rate limiter unavailable", "error", err, "key", userKey)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong", "code": "internal"})
			return
		}

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"code":        "rate_limited",
				"retry_after": math.Max(retryAfter.Seconds(), 0),
			})
			return
		}

		c.Next()
	}
}
