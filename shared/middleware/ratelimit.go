package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(c *gin.Context) string

// ClientIPKey limits per client address.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// UserKey limits per authenticated user, falling back to the client address.
func UserKey(c *gin.Context) string {
	if userID, ok := GetUserID(c); ok && userID != "" {
		return "user:" + userID
	}
	return ClientIPKey(c)
}

// RateLimit rejects requests with 429 once the caller's bucket is empty.
// A limiter failure lets the request through.
func RateLimit(limiter Limiter, key KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		allowed, err := limiter.Allow(c.Request.Context(), k)
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.String("key", k), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}
