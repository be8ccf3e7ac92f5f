package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	ginhandler "users-api/internal/adapter/gin/handler"
	"users-api/internal/config"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &config.Config{App: config.AppConfig{HTTPPort: "0"}}
	srv := New(cfg, log, ginhandler.NewUserHandler(nil, log), nil)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ginhandler.WelcomeMessage, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err, "closing the server is not an error")
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestSetupGinServer_Timeouts(t *testing.T) {
	log := zaptest.NewLogger(t)
	s := SetupGinServer(ginhandler.NewUserHandler(nil, log), nil, ":3000", log)

	assert.Equal(t, ":3000", s.Addr)
	assert.NotZero(t, s.ReadHeaderTimeout)
	assert.NotZero(t, s.WriteTimeout)
}

func TestWithSignal(t *testing.T) {
	t.Run("signal cancels", func(t *testing.T) {
		ctx, stop := WithSignal(context.Background(), zaptest.NewLogger(t))
		defer stop()

		require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("context not canceled by SIGTERM")
		}
	})

	t.Run("stop cancels", func(t *testing.T) {
		ctx, stop := WithSignal(context.Background(), zaptest.NewLogger(t))
		stop()

		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}
