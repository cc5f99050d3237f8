package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/covercheck/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewExtractionQuota),
	fx.Provide(NewEntityLocker),
)

func NewExtractionQuota(client *redis.Client, policy *config.PolicyHolder, log *zap.Logger) ExtractionQuota {
	if client == nil {
		log.Info("extraction quota using in-process counters")
		return NewMemoryQuota(policy)
	}
	return NewRedisQuota(client, policy)
}

func NewEntityLocker(client *redis.Client, cfg config.Config) Locker {
	if client == nil {
		return NewKeyedMutex()
	}
	return NewRedisLocker(client, cfg.Compliance.LockTTL)
}
