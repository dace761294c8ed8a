package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sigdesk.app/server/internal/ratelimit"
)

// RateLimit counts the request against l, keyed by the authenticated user
// when RequireSession ran earlier in the chain and by client IP otherwise.
// Store failures let the request through.
func RateLimit(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var userID int64
		if user := GetUser(ctx); user != nil {
			userID = user.ID
		}

		res, err := l.Check(ctx, ratelimit.Identifier(userID, c.ClientIP()))
		if err != nil {
			slog.WarnContext(ctx, "rate limit check failed, allowing request",
				"error", err,
				"limiter", l.Name(),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Success {
			retryAfter := int(math.Ceil(res.RetryAfter(res.At).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			slog.WarnContext(ctx, "rate limit exceeded",
				"limiter", l.Name(),
				"client_ip", c.ClientIP(),
				"retry_after_s", retryAfter,
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
