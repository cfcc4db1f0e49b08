package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/trinetlabs/trinet/internal/config"
	"go.uber.org/fx"
)

// NewRedisClient returns nil when no address is configured; every consumer
// treats a nil client as "feature disabled".
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewRegistrationLimiter),
)
