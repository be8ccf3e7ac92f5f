package di

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"users-api/internal/config"
)

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		DB: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Name:   filepath.Join(t.TempDir(), "users.db"),
		},
		App: config.AppConfig{
			HTTPPort:               "0",
			ShutdownTimeoutSeconds: 1,
		},
		Logger: config.LoggerConfig{Level: "warn"},
	}
}

func TestNewContainer_Defaults(t *testing.T) {
	c, err := NewContainer(sqliteConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NotNil(t, c.DB)
	assert.NotNil(t, c.UserUC)
	assert.NotNil(t, c.GinHandler)
	assert.Nil(t, c.RedisClient)
	assert.Nil(t, c.RateLimiter)

	assert.NoError(t, c.Close())
}

func TestNewContainer_RedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := net.SplitHostPort(mr.Addr())

	cfg := sqliteConfig(t)
	cfg.Redis = config.RedisConfig{Host: host, Port: port, PoolSize: 2}
	cfg.RateLimit = config.RateLimitConfig{
		Enabled:           true,
		Backend:           config.RateLimitBackendRedis,
		RequestsPerSecond: 5,
		BurstCapacity:     5,
	}

	c, err := NewContainer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NotNil(t, c.RedisClient)
	assert.NotNil(t, c.RateLimiter)
	assert.NoError(t, c.Close())
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DB.Driver = "oracle"

	c, err := NewContainer(cfg, zaptest.NewLogger(t))

	assert.Nil(t, c)
	assert.ErrorContains(t, err, "config validation failed")
}
