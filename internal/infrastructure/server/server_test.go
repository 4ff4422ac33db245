package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/tracing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false
	cfg.Storage.Backend = "file"
	cfg.Storage.Dir = t.TempDir()
	cfg.Preview.Debounce = config.Duration(10 * time.Millisecond)
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func seq(t *testing.T, h http.Handler) float64 {
	t.Helper()
	var stats struct {
		Frame struct {
			Seq float64 `json:"seq"`
		} `json:"frame"`
	}
	require.NoError(t, json.Unmarshal(get(t, h, "/preview/stats").Body.Bytes(), &stats))
	return stats.Frame.Seq
}

func TestServerEditRebuildsPreview(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	h := s.Handler()

	w := get(t, h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(tracing.TraceHeader))
	assert.Equal(t, float64(1), seq(t, h), "starting delivers the current composite")

	body := bytes.NewBufferString(`{"content":"<h1>edited</h1>"}`)
	req := httptest.NewRequest(http.MethodPut, "/active/html/content", body)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return seq(t, h) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, get(t, h, "/preview/document").Body.String(), "<h1>edited</h1>")

	metrics := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "livepen_")
}

func TestServerPersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	first.Start()
	body := bytes.NewBufferString(`{"content":"body { color: red; }"}`)
	req := httptest.NewRequest(http.MethodPut, "/active/css/content", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	first.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, first.Close())

	second := newTestServer(t, cfg)
	active, ok := second.store.Active("css")
	require.True(t, ok)
	assert.Equal(t, "body { color: red; }", active.Content)
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewKVRejectsBadDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Dir = "/dev/null/livepen"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	_, err = NewKV(cfg, logger)
	assert.Error(t, err)

	cfg.Storage.Backend = "memory"
	kv, err := NewKV(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, kv)
}
