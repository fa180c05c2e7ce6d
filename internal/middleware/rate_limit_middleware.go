package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimitConfig is a fixed-window limit.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	// KeyPrefix namespaces the Redis counters.
	KeyPrefix string
}

// ConnectRateLimitConfig limits how often one IP may start a provider authorization.
func ConnectRateLimitConfig(maxRequests int, window time.Duration) RateLimitConfig {
	if maxRequests <= 0 {
		maxRequests = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return RateLimitConfig{
		MaxRequests: maxRequests,
		Window:      window,
		KeyPrefix:   "rl:connect",
	}
}

// RateLimiter counts requests per IP and route in Redis.
type RateLimiter struct {
	redisClient redis.UniversalClient
	logger      *zap.Logger
}

func NewRateLimiter(redisClient redis.UniversalClient, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{redisClient: redisClient, logger: logger}
}

// Limit returns a gin middleware enforcing cfg. Redis failures let the request through.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, clientIP, path)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warn("Rate limiter unavailable, allowing request",
				zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		// First hit in the window starts the clock.
		if count == 1 {
			if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
				rl.logger.Warn("Failed to set rate limit ttl", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}

		ttl, _ := rl.redisClient.TTL(ctx, key).Result()
		retryAfter := int(ttl.Seconds())
		if retryAfter < 0 {
			retryAfter = int(cfg.Window.Seconds())
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(retryAfter))

		if int(count) > cfg.MaxRequests {
			rl.logger.Info("Rate limit exceeded",
				zap.String("ip", clientIP),
				zap.String("path", path),
				zap.Int64("count", count),
				zap.Int("limit", cfg.MaxRequests))

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"details": gin.H{"retry_after": retryAfter},
			})
			return
		}

		c.Next()
	}
}
