// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"weekly-intake/internal/common/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RedisClient holds the connection used for the admin stats cache.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// RegisterMetrics exposes pool hits, misses and timeouts on reg.
func (c *RedisClient) RegisterMetrics(reg prometheus.Registerer) error {
	counters := map[string]func(*redis.PoolStats) float64{
		"hit":     func(s *redis.PoolStats) float64 { return float64(s.Hits) },
		"miss":    func(s *redis.PoolStats) float64 { return float64(s.Misses) },
		"timeout": func(s *redis.PoolStats) float64 { return float64(s.Timeouts) },
	}
	for result, read := range counters {
		read := read
		cf := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "redis_pool_lookups_total",
			Help:        "Redis connection pool lookups by result",
			ConstLabels: prometheus.Labels{"result": result},
		}, func() float64 { return read(c.Client.PoolStats()) })
		if err := reg.Register(cf); err != nil {
			return fmt.Errorf("register redis pool metrics: %w", err)
		}
	}
	return nil
}
