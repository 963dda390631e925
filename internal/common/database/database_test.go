package database

import (
	"context"
	"testing"

	"weekly-intake/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatheredNames(t *testing.T, reg *prometheus.Registry) map[string]int {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := map[string]int{}
	for _, f := range families {
		out[f.GetName()] = len(f.GetMetric())
	}
	return out
}

func TestPostgresClient_PingAndMetrics(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	pg := &PostgresClient{DB: db}
	defer pg.Close()

	require.NoError(t, pg.Ping(context.Background()))

	reg := prometheus.NewRegistry()
	require.NoError(t, pg.RegisterMetrics(reg))
	assert.Equal(t, 4, gatheredNames(t, reg)["postgres_pool_connections"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_PingAndMetrics(t *testing.T) {
	mr := miniredis.RunT(t)

	rc, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, rc.Ping(context.Background()))

	reg := prometheus.NewRegistry()
	require.NoError(t, rc.RegisterMetrics(reg))
	assert.Equal(t, 3, gatheredNames(t, reg)["redis_pool_lookups_total"])
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}
