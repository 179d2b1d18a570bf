package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tour-counter-go/internal/logging"
	"tour-counter-go/internal/models"
	"tour-counter-go/internal/services/monitor"
)

// HistoryReader serves recorded transitions and warnings
type HistoryReader interface {
	RecentStatuses(ctx context.Context, gateID string, limit int) ([]models.StatusUpdate, error)
	RecentAlerts(ctx context.Context, gateID string, limit int) ([]models.Alert, error)
}

// GateHandler serves gate status and accepts ticks
type GateHandler struct {
	gates         *monitor.Manager
	history       HistoryReader
	submitTimeout time.Duration
}

// NewGateHandler creates a gate handler. history may be nil when the store is disabled.
func NewGateHandler(gates *monitor.Manager, history HistoryReader, submitTimeout time.Duration) *GateHandler {
	return &GateHandler{gates: gates, history: history, submitTimeout: submitTimeout}
}

type ErrorResponse struct {
	Error string `json:"error" example:"gate not found: north"`
}

const maxHistoryLimit = 500

// @Summary Current group status
// @Description Occupancy of the default gate
// @Tags gates
// @Produce json
// @Success 200 {object} models.GroupStatus
// @Failure 404 {object} ErrorResponse
// @Router /group_status [get]
func (h *GateHandler) GroupStatus(c *gin.Context) {
	mon, err := h.gates.Gate(h.gates.DefaultGate())
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, mon.Snapshot().GroupStatus)
}

// @Summary List gates
// @Description Snapshot of every monitored gate
// @Tags gates
// @Produce json
// @Success 200 {array} models.GateSnapshot
// @Router /gates [get]
func (h *GateHandler) ListGates(c *gin.Context) {
	c.JSON(http.StatusOK, h.gates.Gates())
}

// @Summary Gate status
// @Description Snapshot of one gate
// @Tags gates
// @Produce json
// @Param id path string true "Gate ID"
// @Success 200 {object} models.GateSnapshot
// @Failure 404 {object} ErrorResponse
// @Router /gates/{id}/status [get]
func (h *GateHandler) GetGateStatus(c *gin.Context) {
	mon, err := h.gates.Gate(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, mon.Snapshot())
}

// @Summary Submit a tick
// @Description Queue one batch of tracker output for a gate. Malformed entities are accepted and rejected individually.
// @Tags gates
// @Accept json
// @Produce json
// @Param id path string true "Gate ID"
// @Param tick body models.TickRequest true "Tracker output"
// @Success 202 {object} models.TickAccepted
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /gates/{id}/ticks [post]
func (h *GateHandler) SubmitTick(c *gin.Context) {
	gateID := c.Param("id")

	var req models.TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	tick := req.Tick(time.Now())

	ctx := c.Request.Context()
	if h.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.submitTimeout)
		defer cancel()
	}

	if err := h.gates.Submit(ctx, gateID, tick); err != nil {
		switch {
		case errors.Is(err, monitor.ErrGateNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		case errors.Is(err, monitor.ErrQueueClosed),
			errors.Is(err, monitor.ErrMonitorFailed),
			errors.Is(err, context.DeadlineExceeded):
			logging.Warn(c).Err(err).Msg("Tick rejected")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		default:
			logging.Error(c).Err(err).Msg("Tick submission failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, models.TickAccepted{
		GateID:    gateID,
		Timestamp: tick.Timestamp,
		Entities:  len(tick.Entities),
		Malformed: tick.CountMalformed(),
	})
}

// @Summary Status history
// @Description Recorded state transitions of a gate, newest first
// @Tags gates
// @Produce json
// @Param id path string true "Gate ID"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {array} models.StatusUpdate
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /gates/{id}/history [get]
func (h *GateHandler) GetHistory(c *gin.Context) {
	gateID, limit, ok := h.historyParams(c)
	if !ok {
		return
	}

	rows, err := h.history.RecentStatuses(c.Request.Context(), gateID, limit)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to read status history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// @Summary Warning history
// @Description Recorded capacity warnings of a gate, newest first
// @Tags gates
// @Produce json
// @Param id path string true "Gate ID"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {array} models.Alert
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /gates/{id}/alerts [get]
func (h *GateHandler) GetAlerts(c *gin.Context) {
	gateID, limit, ok := h.historyParams(c)
	if !ok {
		return
	}

	rows, err := h.history.RecentAlerts(c.Request.Context(), gateID, limit)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to read warning history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *GateHandler) historyParams(c *gin.Context) (string, int, bool) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "history store is disabled"})
		return "", 0, false
	}

	gateID := c.Param("id")
	if _, err := h.gates.Gate(gateID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return "", 0, false
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return "", 0, false
		}
		limit = min(n, maxHistoryLimit)
	}
	return gateID, limit, true
}
