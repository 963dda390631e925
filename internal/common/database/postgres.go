// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"weekly-intake/internal/common/config"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

// PostgresClient owns the pool behind the applications and weekly_questions
// tables.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pooled lib/pq connection. It does not dial; call Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// RegisterMetrics exposes the pool counters as gauges on reg.
func (c *PostgresClient) RegisterMetrics(reg prometheus.Registerer) error {
	gauges := map[string]func(sql.DBStats) float64{
		"open":    func(s sql.DBStats) float64 { return float64(s.OpenConnections) },
		"in_use":  func(s sql.DBStats) float64 { return float64(s.InUse) },
		"idle":    func(s sql.DBStats) float64 { return float64(s.Idle) },
		"waiting": func(s sql.DBStats) float64 { return float64(s.WaitCount) },
	}
	for state, read := range gauges {
		read := read
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "postgres_pool_connections",
			Help:        "Postgres pool connections by state",
			ConstLabels: prometheus.Labels{"state": state},
		}, func() float64 { return read(c.DB.Stats()) })
		if err := reg.Register(g); err != nil {
			return fmt.Errorf("register postgres pool metrics: %w", err)
		}
	}
	return nil
}
