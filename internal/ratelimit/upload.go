package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/encore/internal/config"
)

const keyUploadUser = "finance:upload:user:%s"

// UploadLimiter throttles multipart uploads per acting user. A nil limiter allows everything.
type UploadLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUploadLimiter(cfg config.Config, bucket *TokenBucket) *UploadLimiter {
	if bucket == nil || cfg.Redis.UploadRate <= 0 || cfg.Redis.UploadBurst <= 0 {
		return nil
	}
	return &UploadLimiter{
		bucket: bucket,
		rate:   cfg.Redis.UploadRate,
		burst:  cfg.Redis.UploadBurst,
	}
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UploadLimiter) Allow(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUploadUser, userID), l.rate, l.burst)
}
