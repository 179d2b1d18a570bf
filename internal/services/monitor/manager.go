package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"tour-counter-go/internal/metrics"
	"tour-counter-go/internal/models"
)

var (
	// ErrGateNotFound is returned for an unknown gate id
	ErrGateNotFound = errors.New("gate not found")
	// ErrGateExists is returned when registering a gate id twice
	ErrGateExists = errors.New("gate already registered")
)

// Manager owns the gate monitors and their goroutines
type Manager struct {
	opts      Options
	publisher models.EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu          sync.RWMutex
	monitors    map[string]*Monitor
	defaultGate string

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewManager creates an empty manager
func NewManager(opts Options, publisher models.EventPublisher, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		opts:      opts,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		monitors:  make(map[string]*Monitor),
	}
}

// AddGate registers a gate. The first registered gate becomes the default.
// Gates added after Start begin running immediately.
func (mg *Manager) AddGate(cfg models.GateConfig) (*Monitor, error) {
	mon, err := New(cfg, mg.opts, mg.publisher, mg.metrics, mg.logger)
	if err != nil {
		return nil, err
	}

	mg.mu.Lock()
	defer mg.mu.Unlock()

	if _, ok := mg.monitors[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrGateExists, cfg.ID)
	}
	mg.monitors[cfg.ID] = mon
	if mg.defaultGate == "" {
		mg.defaultGate = cfg.ID
	}
	if mg.running {
		mg.startLocked(mon)
	}

	mg.logger.Info().Str("gate_id", cfg.ID).Msg("Gate registered")
	return mon, nil
}

// Gate looks up a monitor by id
func (mg *Manager) Gate(id string) (*Monitor, error) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	mon, ok := mg.monitors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGateNotFound, id)
	}
	return mon, nil
}

// DefaultGate returns the id of the first registered gate
func (mg *Manager) DefaultGate() string {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.defaultGate
}

// Gates returns snapshots of all gates ordered by id
func (mg *Manager) Gates() []models.GateSnapshot {
	mg.mu.RLock()
	snaps := make([]models.GateSnapshot, 0, len(mg.monitors))
	for _, mon := range mg.monitors {
		snaps = append(snaps, mon.Snapshot())
	}
	mg.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].GateID < snaps[j].GateID })
	return snaps
}

// Submit queues a tick for a gate
func (mg *Manager) Submit(ctx context.Context, gateID string, tick models.Tick) error {
	mon, err := mg.Gate(gateID)
	if err != nil {
		return err
	}
	return mon.Submit(ctx, tick)
}

// Healthy reports false once any gate has failed
func (mg *Manager) Healthy() bool {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	for _, mon := range mg.monitors {
		if mon.Err() != nil {
			return false
		}
	}
	return true
}

// Start launches one tick loop per gate
func (mg *Manager) Start(ctx context.Context) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if mg.running {
		return
	}
	mg.ctx, mg.cancel = context.WithCancel(ctx)
	mg.running = true

	for _, mon := range mg.monitors {
		mg.startLocked(mon)
	}
	mg.logger.Info().Int("gates", len(mg.monitors)).Msg("Gate monitors started")
}

func (mg *Manager) startLocked(mon *Monitor) {
	mg.wg.Add(1)
	go func() {
		defer mg.wg.Done()
		if err := mon.Run(mg.ctx); err != nil {
			mg.logger.Error().Err(err).Str("gate_id", mon.ID()).Msg("Gate monitor exited")
		}
	}()
}

// Shutdown stops every gate, letting each drain its queue, and waits for the
// loops to exit or ctx to end
func (mg *Manager) Shutdown(ctx context.Context) error {
	mg.mu.Lock()
	if !mg.running {
		mg.mu.Unlock()
		return nil
	}
	mg.running = false
	for _, mon := range mg.monitors {
		mon.Stop()
	}
	cancel := mg.cancel
	mg.mu.Unlock()

	done := make(chan struct{})
	go func() {
		mg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		mg.logger.Info().Msg("Gate monitors stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}
