package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/config"
	"tour-counter-go/internal/models"
)

// Service publishes group status and alerts to NATS
type Service struct {
	conn *nats.Conn
	cfg  *config.Config
}

func NewService(cfg *config.Config) (*Service, error) {
	opts := []nats.Option{
		nats.Name("tour-counter-" + cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DrainTimeout(cfg.NatsDrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NatsURL, err)
	}

	log.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn: conn,
		cfg:  cfg,
	}, nil
}

// Subject builds the per-gate subject, e.g. tour.status.main
func Subject(prefix, gateID string) string {
	return prefix + "." + gateID
}

func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) Name() string { return "nats" }

func (s *Service) SendStatus(_ context.Context, update models.StatusUpdate) error {
	return s.Publish(Subject(s.cfg.StatusSubject, update.GateID), update)
}

func (s *Service) SendAlert(_ context.Context, alert models.Alert) error {
	return s.Publish(Subject(s.cfg.AlertsSubject, alert.GateID), alert)
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains pending publishes, closing the connection outright if the
// drain fails or ctx ends first
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		log.Warn().Err(err).Msg("NATS drain failed, closing connection")
		s.conn.Close()
		return nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !s.conn.IsClosed() {
		select {
		case <-ctx.Done():
			s.conn.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
