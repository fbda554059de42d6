package middleware

import (
	"context"                  // Context for Redis operations
	"strconv"                  // String conversion
	"time"                     // Window duration
	"wagerhub/internal/apperror" // Error envelope

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// RateLimitMiddleware enforces a fixed window of limit requests per minute
// per authenticated user (falling back to client IP before auth). Counting
// happens in redis so the limit holds across instances.
func RateLimitMiddleware(rdb *redis.Client, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		key := "ratelimit:ip:" + c.ClientIP()
		if userID, exists := c.Get("userID"); exists {
			key = "ratelimit:user:" + strconv.Itoa(int(userID.(uint)))
		}
		count, err := rdb.Incr(ctx, key).Result() // Bump the window counter
		if err != nil {
			c.Next() // Redis down: let the request through rather than 500 everything
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, time.Minute) // First hit opens the window
		}
		if count > int64(limit) {
			apperror.Abort(c, apperror.New(apperror.CodeRateLimit, "Too many requests", 429))
			return
		}
		c.Next()
	}
}
