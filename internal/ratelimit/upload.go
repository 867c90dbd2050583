package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyUploadUser = "speechapp:upload:user:%s"

// UploadLimiter throttles recording uploads per user.
type UploadLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUploadLimiter(cfg config.Config, client *redis.Client) (*UploadLimiter, error) {
	if client == nil {
		return nil, nil
	}
	if cfg.Upload.Rate <= 0 || cfg.Upload.Burst <= 0 {
		return nil, errors.New("upload rate limit must be positive")
	}
	return &UploadLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.Upload.Rate,
		burst:  cfg.Upload.Burst,
	}, nil
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowUser allows everything when the limiter is disabled.
func (l *UploadLimiter) AllowUser(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUploadUser, strings.TrimSpace(userID)), l.rate, l.burst)
}
