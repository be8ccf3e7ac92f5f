package app

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"users-api/internal/config"
)

func testConfig(t *testing.T, port string) *config.Config {
	return &config.Config{
		DB: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Name:   filepath.Join(t.TempDir(), "users.db"),
		},
		App: config.AppConfig{
			Environment:            "test",
			HTTPPort:               port,
			ShutdownTimeoutSeconds: 1,
		},
		Logger: config.LoggerConfig{Level: "warn", ServiceName: "users-api"},
	}
}

func TestRun_GracefulShutdown(t *testing.T) {
	a, err := NewWithConfig(testConfig(t, "0"), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_ListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })
	_, port, _ := net.SplitHostPort(busy.Addr().String())

	a, err := NewWithConfig(testConfig(t, port), zaptest.NewLogger(t))
	require.NoError(t, err)

	err = a.Run(context.Background())
	assert.ErrorContains(t, err, "failed to listen")
}

func TestNewWithConfig_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "0")
	cfg.App.ShutdownTimeoutSeconds = 0

	a, err := NewWithConfig(cfg, zaptest.NewLogger(t))

	assert.Nil(t, a)
	assert.ErrorContains(t, err, "SHUTDOWN_TIMEOUT_SECONDS")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, ".", getConfigPath())

	t.Setenv("CONFIG_PATH", "/etc/users-api")
	assert.Equal(t, "/etc/users-api", getConfigPath())
}
