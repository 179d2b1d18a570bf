package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID   string
	startedAt  time.Time
	components func() map[string]bool
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(workerID string, components func() map[string]bool) *SystemHandler {
	return &SystemHandler{
		WorkerID:   workerID,
		startedAt:  time.Now(),
		components: components,
	}
}

// @Summary Get system stats
// @Description Get system statistics and performance metrics
// @Tags system
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var components map[string]bool
	if h.components != nil {
		components = h.components()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"worker_id":      h.WorkerID,
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
			"memory_mb":      m.Alloc / 1024 / 1024,
			"cpu_cores":      runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
		},
		"components": components,
		"timestamp":  time.Now().Unix(),
	})
}
