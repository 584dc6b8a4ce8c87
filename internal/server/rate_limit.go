package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pxwallet/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pxwallet/internal/observability/metrics"
	"github.com/smallbiznis/pxwallet/internal/ratelimit"
	"go.uber.org/zap"
)

// MoneyRateLimit throttles endpoints that move money, per caller.
func (s *Server) MoneyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.moneyLimiter == nil || !s.moneyLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		result, err := s.moneyLimiter.AllowUser(ctx, userID(c))
		if err != nil {
			logger.FromContext(ctx).Warn("money rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		writeRateLimitHeaders(c, result)
		if !result.Allowed {
			denyMoneyRateLimit(c, endpoint, result, s.obsMetrics)
			return
		}
		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, result *ratelimit.RateLimitResult) {
	if result == nil || result.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
	if !result.ResetTime.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))
	}
}

func denyMoneyRateLimit(c *gin.Context, endpoint string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("money rate limit exceeded",
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, metrics)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

func recordRateLimitDenied(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
