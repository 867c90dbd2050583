package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/logger"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const rateLimitReasonUserUpload = "user-upload-rate"

// UploadRateLimit throttles recording uploads per subject. Must run after AuthRequired.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.uploadLimiter == nil || !s.uploadLimiter.Enabled() {
			c.Next()
			return
		}

		subject, ok := subjectFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		result, err := s.uploadLimiter.AllowUser(ctx, subject.ActorID())
		if err != nil {
			logger.FromContext(ctx).Warn("upload rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyUploadRateLimit(c, endpoint, result, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyUploadRateLimit(c *gin.Context, endpoint string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("upload rate limit exceeded",
		zap.String("reason", rateLimitReasonUserUpload),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonUserUpload, metrics)

	c.Header("Retry-After", retryAfterSeconds(result))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonUserUpload)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(result *ratelimit.RateLimitResult) string {
	if result == nil || result.RetryAfter <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
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
