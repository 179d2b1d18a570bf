package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

// WithGate scopes a logger to one monitored gate
func WithGate(base zerolog.Logger, gateID string) zerolog.Logger {
	return base.With().Str("gate_id", gateID).Logger()
}
