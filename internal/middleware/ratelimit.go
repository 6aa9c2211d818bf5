package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripbroker/internal/redis"
)

// RateLimit throttles requests per client IP over a fixed window. The
// counter lives in Redis so the limit holds across instances. When the
// throttle store errors the request is let through; throttling is never
// worth an outage.
func RateLimit(store redis.ThrottleStoreInterface, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}

		count, err := store.Incr(c.Request.Context(), c.ClientIP(), window)
		if err != nil {
			c.Next()
			return
		}
		if count > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
