package infrastructure

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"users-api/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Logger: config.LoggerConfig{Level: "warn", SlowQuerySeconds: 0.2},
	}
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := testConfig()
	cfg.DB = config.DatabaseConfig{Driver: config.DriverSQLite, Name: filepath.Join(t.TempDir(), "users.db")}

	db, err := NewDatabase(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDatabase(db) })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, config.DBPoolSize, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, sqlDB.Ping())
}

func TestNewDatabase_UnreachableKeepsRunning(t *testing.T) {
	// Grab a free port and release it so nothing is listening there
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(lis.Addr().String())
	require.NoError(t, lis.Close())

	cfg := testConfig()
	cfg.DB = config.DatabaseConfig{
		Driver:   config.DriverMySQL,
		Host:     "127.0.0.1",
		Port:     port,
		User:     "root",
		Password: "user",
		Name:     "simple_app",
	}

	core, logs := observer.New(zapcore.ErrorLevel)
	db, err := NewDatabase(cfg, zap.New(core))

	require.NoError(t, err)
	require.NotNil(t, db)
	t.Cleanup(func() { _ = CloseDatabase(db) })
	assert.Equal(t, 1, logs.FilterMessage("database unreachable at startup, continuing").Len())
}

func TestNewDialector(t *testing.T) {
	for _, driver := range []string{config.DriverMySQL, config.DriverPostgres, config.DriverSQLite} {
		d, err := newDialector(&config.DatabaseConfig{Driver: driver, Name: "x"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := newDialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.EqualError(t, err, `unsupported database driver "oracle"`)
}

func TestCloseDatabase_Nil(t *testing.T) {
	assert.NoError(t, CloseDatabase(nil))
}

func TestNewRedisClient(t *testing.T) {
	t.Run("not needed", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: config.RateLimitBackendMemory}

		rdb, err := NewRedisClient(cfg, zaptest.NewLogger(t))
		assert.NoError(t, err)
		assert.Nil(t, rdb)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port, _ := net.SplitHostPort(mr.Addr())

		cfg := testConfig()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: config.RateLimitBackendRedis}
		cfg.Redis = config.RedisConfig{Host: host, Port: port, PoolSize: 2}

		rdb, err := NewRedisClient(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, rdb)
		assert.NoError(t, rdb.Close())
	})
}
