package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-counter-go/internal/api/handlers"
	"tour-counter-go/internal/config"
	"tour-counter-go/internal/models"
	"tour-counter-go/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Version:           "test",
		WorkerID:          "worker-test",
		Port:              8000,
		LogLevel:          "debug",
		StoreEnabled:      true,
		StorePath:         filepath.Join(t.TempDir(), "tour.db"),
		GateID:            "main",
		Boundary:          config.BoundaryConfig{Y: 800, XMin: 600, XMax: 1500},
		CrossingCooldown:  2 * time.Second,
		IdleTimeout:       5 * time.Second,
		FinishedSettle:    time.Second,
		CapacityThreshold: 22,
		AlertCooldown:     10 * time.Second,
		TickQueueSize:     16,
		Backpressure:      config.BackpressureBlock,
		SubmitTimeout:     time.Second,
		PublishBuffer:     16,
		PublishWorkers:    1,
		PublishTimeout:    time.Second,
		SwaggerHost:       "localhost",
	}
}

func startTestServer(t *testing.T, cfg *config.Config) (*Server, *services.ServiceContainer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	container, err := services.NewServiceContainer(cfg)
	require.NoError(t, err)
	container.Start(context.Background())

	srv := newServer(cfg, container)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = container.Shutdown(ctx)
	})
	return srv, container
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	srv, _ := startTestServer(t, testConfig(t))

	rec := do(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[handlers.HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode[handlers.WorkerInfoResponse](t, rec).Version)

	rec = do(srv, http.MethodGet, "/system/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Components map[string]bool `json:"components"`
	}](t, rec)
	assert.Equal(t, map[string]bool{"nats": false, "store": true, "grpc": false}, stats.Components)

	rec = do(srv, http.MethodGet, "/docs/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/gates/{id}/ticks")
}

func TestTickLifecycle(t *testing.T) {
	srv, _ := startTestServer(t, testConfig(t))

	rec := do(srv, http.MethodGet, "/group_status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current_count":0,"total_count":0,"status":"WAITING"}`, rec.Body.String())

	rec = do(srv, http.MethodPost, "/gates/main/ticks",
		`{"timestamp":"2026-03-01T10:00:00Z","entities":[{"id":1,"x":700,"y":790},{"id":2,"x":100,"y":790}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodPost, "/gates/main/ticks",
		`{"timestamp":"2026-03-01T10:00:01Z","entities":[{"id":1,"x":700,"y":820},{"id":3}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[models.TickAccepted](t, rec)
	assert.Equal(t, "main", accepted.GateID)
	assert.Equal(t, 2, accepted.Entities)
	assert.Equal(t, 1, accepted.Malformed)

	require.Eventually(t, func() bool {
		rec := do(srv, http.MethodGet, "/gates/main/status", "")
		return decode[models.GateSnapshot](t, rec).TicksProcessed == 2
	}, 2*time.Second, 10*time.Millisecond)

	rec = do(srv, http.MethodGet, "/group_status", "")
	assert.JSONEq(t, `{"current_count":1,"total_count":1,"status":"ENTERING"}`, rec.Body.String())

	rec = do(srv, http.MethodGet, "/gates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	gates := decode[[]models.GateSnapshot](t, rec)
	require.Len(t, gates, 1)
	assert.Equal(t, 1, gates[0].CurrentCount)

	var history []models.StatusUpdate
	require.Eventually(t, func() bool {
		rec := do(srv, http.MethodGet, "/gates/main/history", "")
		history = decode[[]models.StatusUpdate](t, rec)
		return len(history) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.StateEntering, history[0].State)
	assert.Equal(t, models.StateDetecting, history[0].Previous)
	assert.Equal(t, models.StateDetecting, history[1].State)

	rec = do(srv, http.MethodGet, "/gates/main/history?limit=1", "")
	assert.Len(t, decode[[]models.StatusUpdate](t, rec), 1)

	rec = do(srv, http.MethodGet, "/gates/main/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Alert](t, rec))

	rec = do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tour_ticks_processed_total{gate="main"} 2`)
	assert.Contains(t, rec.Body.String(), `tour_rejected_entities_total{gate="main"} 1`)
}

func TestCapacityAlertRecorded(t *testing.T) {
	cfg := testConfig(t)
	cfg.CapacityThreshold = 1
	srv, _ := startTestServer(t, cfg)

	rec := do(srv, http.MethodPost, "/gates/main/ticks",
		`{"timestamp":"2026-03-01T10:00:00Z","entities":[{"id":1,"x":700,"y":790},{"id":2,"x":800,"y":790}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(srv, http.MethodPost, "/gates/main/ticks",
		`{"timestamp":"2026-03-01T10:00:01Z","entities":[{"id":1,"x":700,"y":820},{"id":2,"x":800,"y":830}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var alerts []models.Alert
	require.Eventually(t, func() bool {
		rec := do(srv, http.MethodGet, "/gates/main/alerts", "")
		alerts = decode[[]models.Alert](t, rec)
		return len(alerts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, alerts[0].CurrentCount)
	assert.Equal(t, 1, alerts[0].Threshold)
	assert.Equal(t, models.AlertStatusWarning, alerts[0].Status)
	assert.NotEmpty(t, alerts[0].ID)
}

func TestRequestErrors(t *testing.T) {
	srv, container := startTestServer(t, testConfig(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown gate status", http.MethodGet, "/gates/north/status", "", http.StatusNotFound},
		{"unknown gate tick", http.MethodPost, "/gates/north/ticks", `{"entities":[]}`, http.StatusNotFound},
		{"invalid json", http.MethodPost, "/gates/main/ticks", `{"entities":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/gates/main/ticks", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/gates/main/history?limit=abc", "", http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/gates/main/alerts?limit=0", "", http.StatusBadRequest},
		{"unknown gate history", http.MethodGet, "/gates/north/history", "", http.StatusNotFound},
		{"preflight", http.MethodOptions, "/gates", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("stopped gate", func(t *testing.T) {
		require.NoError(t, container.Gates.Shutdown(context.Background()))
		rec := do(srv, http.MethodPost, "/gates/main/ticks", `{"entities":[]}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreEnabled = false
	srv, _ := startTestServer(t, cfg)

	rec := do(srv, http.MethodGet, "/gates/main/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
