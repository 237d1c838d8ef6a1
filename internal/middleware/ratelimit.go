package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatherly/backend/pkg/response"
)

// RateLimit returns a fixed-window rate limiter keyed by user ID (falling back
// to client IP for unauthenticated routes). Counters live in Redis so the
// limit holds across instances. Fails open if Redis is unavailable.
func RateLimit(client *redis.Client, requests int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + clientKey(c)

		ctx := c.Request.Context()
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			_ = client.Expire(ctx, key, window).Err()
		}
		if count > int64(requests) {
			ttl, _ := client.TTL(ctx, key).Result()
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			response.TooManyRequests(c, fmt.Sprintf("rate limit exceeded: %d requests per %s", requests, window))
			c.Abort()
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if v, ok := c.Get(ContextUserID); ok {
		return fmt.Sprint(v)
	}
	return c.ClientIP()
}
