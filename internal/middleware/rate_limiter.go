package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RPS   rate.Limit
	Burst int
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{RPS: 50, Burst: 100}
}

// RateLimit applies one token bucket shared by all clients. The 429 body
// uses the same error shape as the rest of the API.
func RateLimit(config RateLimiterConfig) gin.HandlerFunc {
	if config.RPS <= 0 {
		config = DefaultRateLimiterConfig()
	}
	limiter := rate.NewLimiter(config.RPS, config.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
