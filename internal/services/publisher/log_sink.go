package publisher

import (
	"context"

	"github.com/rs/zerolog"

	"tour-counter-go/internal/models"
)

// LogSink writes status updates and warnings to the structured log
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("sink", "log").Logger()}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) SendStatus(_ context.Context, u models.StatusUpdate) error {
	l.logger.Info().
		Str("gate_id", u.GateID).
		Str("status", string(u.State)).
		Str("previous_status", string(u.Previous)).
		Int("current_count", u.CurrentCount).
		Int("total_count", u.TotalCount).
		Time("timestamp", u.Timestamp).
		Msg("Group status")
	return nil
}

func (l *LogSink) SendAlert(_ context.Context, a models.Alert) error {
	l.logger.Warn().
		Str("alert_id", a.ID).
		Str("gate_id", a.GateID).
		Str("status", string(a.Status)).
		Int("current_count", a.CurrentCount).
		Int("threshold", a.Threshold).
		Time("timestamp", a.Timestamp).
		Msg("Capacity warning received")
	return nil
}
