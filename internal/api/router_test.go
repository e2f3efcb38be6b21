package api

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_HealthOnlyWithoutService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	router := NewRouter(logger, nil)
	router.Setup()

	resp, err := router.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = router.App().Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = router.App().Test(httptest.NewRequest("GET", "/v1/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode, "operational routes need a service")
}

func TestRouter_ShutdownReturnsOnceDrained(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	router := NewRouter(logger, nil)
	router.Setup()

	go func() { _ = router.Listen("127.0.0.1:0") }()
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, router.ShutdownWithTimeout(10*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second, "an idle server must not sit out the timeout")
}
