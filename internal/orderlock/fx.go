package orderlock

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/vendelo/checkout/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewGuardFromConfig wires the per-order guard. Without a redis address the
// guard degrades to the in-process keyed mutex, which is enough for a single
// replica.
func NewGuardFromConfig(cfg config.Config, log *zap.Logger) *Guard {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Named("orderlock").Info("redis not configured, using in-process order lock only")
		return NewGuard(nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return NewGuard(NewLocker(client))
}

var Module = fx.Module("orderlock",
	fx.Provide(NewGuardFromConfig),
)
