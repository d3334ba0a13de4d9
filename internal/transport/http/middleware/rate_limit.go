package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/infra/ratelimit"
	"github.com/anjun206/board-app/internal/infra/security"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
// When Floor is set, denied requests are held until the floor elapses so a
// 429 takes as long as any other auth failure.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
	Floor      *security.ResponseFloor
}

// RateLimiter enforces sliding-window rules over the in-memory limiter.
type RateLimiter struct {
	limiter *ratelimit.MemoryLimiter
	logger  *zap.Logger
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(limiter *ratelimit.MemoryLimiter, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		limiter: limiter,
		logger:  logger,
	}
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. The first
// exceeded rule aborts with 429 and a Retry-After header.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.limiter == nil {
			c.Next()
			return
		}

		started := time.Now()
		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			key := fmt.Sprintf("%s:%s", rule.Name, identifier)
			if rl.limiter.Allow(key, rule.Limit, rule.Window) {
				continue
			}

			rl.logger.Warn("rate limit exceeded",
				zap.String("rule", rule.Name),
				zap.String("path", c.Request.URL.Path),
			)

			if rule.Floor != nil {
				rule.Floor.Wait(started)
			}

			seconds := int(math.Ceil(rule.Window.Seconds()))
			c.Writer.Header().Set("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":    "too many requests",
				"trace_id": GetTraceID(c),
			})
			return
		}

		c.Next()
	}
}
