// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/config"
)

const redisPingTimeout = 5 * time.Second

// Redis holds session revocation markers and rate limit counters. Nothing
// in it is authoritative; losing it only re-admits revoked sessions until
// they expire.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	r := &Redis{Client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close()
		return nil, err
	}

	return r, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthStats is the pool summary shown on the readiness report.
func (r *Redis) HealthStats() map[string]any {
	s := r.Client.PoolStats()
	return map[string]any{
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
		"timeouts":    s.Timeouts,
	}
}
