package services

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"tour-counter-go/internal/config"
	"tour-counter-go/internal/logging"
	"tour-counter-go/internal/metrics"
	"tour-counter-go/internal/services/messaging"
	"tour-counter-go/internal/services/monitor"
	"tour-counter-go/internal/services/publisher"
	"tour-counter-go/internal/services/store"
	"tour-counter-go/internal/transport/grpcingest"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config    *config.Config
	Metrics   *metrics.Metrics
	Store     *store.Store
	Messaging *messaging.Service
	Publisher *publisher.Service
	Gates     *monitor.Manager
	Ingest    *grpcingest.Server

	ingestLis net.Listener
	cancel    context.CancelFunc
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	sc := &ServiceContainer{
		Config:  cfg,
		Metrics: metrics.New(),
	}

	sinks := []publisher.Sink{publisher.NewLogSink(logging.NewServiceLogger(cfg, "warnings"))}

	if cfg.StoreEnabled {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		sc.Store = st
		sinks = append(sinks, st)
	}

	if cfg.NatsEnabled {
		// NATS is optional at startup; status is still logged and stored without it
		msg, err := messaging.NewService(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("NATS not available, status fan-out disabled")
		} else {
			sc.Messaging = msg
			sinks = append(sinks, msg)
		}
	}

	sc.Publisher = publisher.NewService(publisher.Options{
		Buffer:  cfg.PublishBuffer,
		Workers: cfg.PublishWorkers,
		Timeout: cfg.PublishTimeout,
	}, sc.Metrics, logging.NewServiceLogger(cfg, "publisher"), sinks...)

	backpressure := monitor.DropOldest
	if cfg.Backpressure == config.BackpressureBlock {
		backpressure = monitor.Block
	}
	sc.Gates = monitor.NewManager(monitor.Options{
		QueueSize:    cfg.TickQueueSize,
		Backpressure: backpressure,
	}, sc.Publisher, sc.Metrics, logging.NewServiceLogger(cfg, "monitor"))

	if _, err := sc.Gates.AddGate(cfg.Gate()); err != nil {
		sc.closeSinks(context.Background())
		return nil, fmt.Errorf("register gate %s: %w", cfg.GateID, err)
	}

	if cfg.GRPCEnabled {
		lis, err := grpcingest.Listen(cfg.GRPCPort)
		if err != nil {
			sc.closeSinks(context.Background())
			return nil, err
		}
		sc.ingestLis = lis
		sc.Ingest = grpcingest.NewServer(sc.Gates, cfg.SubmitTimeout, logging.NewServiceLogger(cfg, "ingest"))
	}

	return sc, nil
}

// Start launches the gate loops and the gRPC ingest server
func (sc *ServiceContainer) Start(ctx context.Context) {
	ctx, sc.cancel = context.WithCancel(ctx)
	sc.Gates.Start(ctx)

	if sc.Ingest != nil {
		go func() {
			if err := sc.Ingest.Serve(sc.ingestLis); err != nil {
				log.Error().Err(err).Msg("gRPC tick ingest stopped")
			}
		}()
	}
}

// Healthy reports whether every gate is still running
func (sc *ServiceContainer) Healthy() bool {
	healthy := sc.Gates.Healthy()
	if sc.Ingest != nil {
		sc.Ingest.SetServing(healthy)
	}
	return healthy
}

// Components reports which optional integrations are up
func (sc *ServiceContainer) Components() map[string]bool {
	return map[string]bool{
		"nats":  sc.Messaging != nil && sc.Messaging.IsConnected(),
		"store": sc.Store != nil && sc.Store.Ping(context.Background()) == nil,
		"grpc":  sc.Ingest != nil,
	}
}

// Shutdown gracefully shuts down all services. Ingestion stops first, then
// the gates drain, then queued events are delivered before the sinks close.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.Ingest != nil {
		sc.Ingest.Shutdown(ctx)
	}

	if err := sc.Gates.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gates: %w", err))
	}
	if sc.cancel != nil {
		sc.cancel()
	}

	errs = append(errs, sc.closeSinks(ctx))
	return errors.Join(errs...)
}

func (sc *ServiceContainer) closeSinks(ctx context.Context) error {
	var errs []error

	if sc.Publisher != nil {
		if err := sc.Publisher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if sc.Store != nil {
		if err := sc.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
