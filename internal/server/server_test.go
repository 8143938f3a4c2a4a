package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/scriptbridge/internal/api/middleware"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/config"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := New(cfg, nil, reg, reg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestRoutesAndMiddleware(t *testing.T) {
	srv := newTestServer(t, config.Default())

	w := serve(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = serve(srv, http.MethodPost, "/contexts", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"gather_stats":true`)
	assert.Equal(t, 1, srv.Manager().Len())

	w = serve(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scriptbridge_contexts_active 1")
	assert.Contains(t, w.Body.String(), `scriptbridge_http_requests_total{method="POST",path="/contexts",status="201"} 1`)
}

func TestContextLimitFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bridge.MaxContexts = 1
	srv := newTestServer(t, cfg)

	assert.Equal(t, http.StatusCreated, serve(srv, http.MethodPost, "/contexts", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, http.MethodPost, "/contexts", "").Code)
}

func TestOptionsFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("save_messages: false\nmax_timeout_us: 750000\n"), 0o600))

	cfg := config.Default()
	cfg.Bridge.OptionsFile = path
	srv := newTestServer(t, cfg)

	w := serve(srv, http.MethodPost, "/contexts", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"max_timeout_us":750000`)
	assert.Contains(t, w.Body.String(), `"save_messages":false`)
}

func TestNewRejectsBadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"turbo": true}`), 0o600))

	cfg := config.Default()
	cfg.Bridge.OptionsFile = path
	reg := prometheus.NewRegistry()
	_, err := New(cfg, nil, reg, reg)
	assert.Error(t, err)
}

func TestShutdownClosesContexts(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, err := New(config.Default(), nil, reg, reg)
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, serve(srv, http.MethodPost, "/contexts", "").Code)
	require.Equal(t, http.StatusCreated, serve(srv, http.MethodPost, "/contexts", "").Code)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, 0, srv.Manager().Len())
}
