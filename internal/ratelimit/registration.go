package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/trinetlabs/trinet/internal/config"
	"go.uber.org/zap"
)

const keyRegistration = "trinet:ratelimit:register:%s"

// RegistrationLimiter throttles member signups per client address. Without a
// redis address it degrades to allow-all so a local deployment needs no
// extra infrastructure.
type RegistrationLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket

	rate  float64
	burst int
}

func NewRegistrationLimiter(cfg config.Config, log *zap.Logger, client *redis.Client) *RegistrationLimiter {
	if client == nil || cfg.RegistrationRateLimit <= 0 {
		return nil
	}
	window := cfg.RegistrationRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return &RegistrationLimiter{
		log:    log.Named("ratelimit.registration"),
		bucket: NewTokenBucket(client),
		rate:   float64(cfg.RegistrationRateLimit) / window.Seconds(),
		burst:  cfg.RegistrationRateLimit,
	}
}

func (l *RegistrationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open: a redis outage must not block signups.
func (l *RegistrationLimiter) Allow(ctx context.Context, clientKey string) bool {
	if !l.Enabled() {
		return true
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		return true
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyRegistration, clientKey), l.rate, l.burst)
	if err != nil {
		l.log.Warn("registration rate limit check failed", zap.Error(err))
		return true
	}
	return res.Allowed
}
