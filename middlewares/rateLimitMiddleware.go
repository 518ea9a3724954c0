package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/utils"
)

// RateLimitMiddleware is a fixed-window limiter keyed by organization, or client IP before auth.
// It lets everything through when limit <= 0 or Redis is not connected.
func RateLimitMiddleware(limit int64, window time.Duration) gin.HandlerFunc {
	if window < time.Second {
		window = time.Minute
	}
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		subject := c.ClientIP()
		if orgId, ok := utils.GetOrganizationIdFromContext(c.Request.Context()); ok && orgId != "" {
			subject = orgId
		}
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", subject, bucket)

		count, err := config.IncrRedisCounter(c.Request.Context(), key, window)
		if err != nil {
			// fail open
			config.LogError(config.GetLogger(), "middlewares", "RateLimitMiddleware", "incr counter", key, err)
			c.Next()
			return
		}
		if count > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(window.Seconds())),
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
