package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		healthy func() bool
		code    int
		status  string
	}{
		{"all gates running", func() bool { return true }, http.StatusOK, "healthy"},
		{"gate failed", func() bool { return false }, http.StatusServiceUnavailable, "unhealthy"},
		{"no probe", nil, http.StatusOK, "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("worker-test", "test", tt.healthy)
			router := gin.New()
			router.GET("/health", h.HealthCheck)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.code, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, "worker-test", resp.WorkerID)
		})
	}
}
