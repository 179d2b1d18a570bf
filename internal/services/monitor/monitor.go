// Package monitor runs the per-gate tick loop: ticks arrive through a bounded
// queue and are evaluated strictly in order by a single goroutine that owns the
// crossing history and the occupancy state machine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tour-counter-go/internal/logging"
	"tour-counter-go/internal/metrics"
	"tour-counter-go/internal/models"
	"tour-counter-go/internal/services/crossing"
	"tour-counter-go/internal/services/occupancy"
)

// ErrMonitorFailed is returned once a gate has stopped on an invariant violation
var ErrMonitorFailed = errors.New("gate monitor failed")

// Options tune the tick queue of a monitor
type Options struct {
	QueueSize    int
	Backpressure Backpressure
}

// TickResult reports what one tick did
type TickResult struct {
	Events   []models.CrossingEvent
	Rejected int
	Evicted  int
	occupancy.Outcome
}

// stepper is the part of occupancy.Machine the tick loop drives
type stepper interface {
	Step(in occupancy.Input) (occupancy.Outcome, error)
	Status() models.GroupStatus
}

// Monitor evaluates ticks for one gate
type Monitor struct {
	cfg      models.GateConfig
	detector *crossing.Detector
	machine  stepper
	queue    *TickQueue
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu       sync.RWMutex
	snapshot models.GateSnapshot
	failErr  error
}

// New creates a monitor for a gate. The monitor does nothing until Run is called.
func New(cfg models.GateConfig, opts Options, publisher models.EventPublisher, m *metrics.Metrics, logger zerolog.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}

	det := crossing.NewDetector(cfg.Line, cfg.CrossingCooldown)
	mon := &Monitor{
		cfg:      cfg,
		detector: det,
		machine:  occupancy.NewMachine(cfg, det, publisher),
		queue:    NewTickQueue(opts.QueueSize, opts.Backpressure),
		metrics:  m,
		logger:   logging.WithGate(logger, cfg.ID),
	}
	mon.snapshot = models.GateSnapshot{
		GateID:      cfg.ID,
		Line:        cfg.Line,
		GroupStatus: mon.machine.Status(),
	}
	m.ObserveStatus(cfg.ID, mon.snapshot.GroupStatus)

	return mon, nil
}

// ID returns the gate id
func (mon *Monitor) ID() string {
	return mon.cfg.ID
}

// Submit queues a tick for evaluation
func (mon *Monitor) Submit(ctx context.Context, tick models.Tick) error {
	if err := mon.Err(); err != nil {
		return err
	}

	dropped, err := mon.queue.Push(ctx, tick)
	if err != nil {
		return err
	}
	if dropped > 0 {
		mon.metrics.TicksDropped.WithLabelValues(mon.cfg.ID).Add(float64(dropped))
		mon.logger.Debug().Int("dropped", dropped).Msg("Tick queue full, dropped oldest ticks")
	}
	mon.metrics.QueueDepth.WithLabelValues(mon.cfg.ID).Set(float64(mon.queue.Len()))
	return nil
}

// Run consumes the queue until ctx ends or Stop is called. It returns an error
// wrapping ErrMonitorFailed if the state machine hit an invariant violation.
func (mon *Monitor) Run(ctx context.Context) error {
	mon.logger.Info().
		Float64("line_y", mon.cfg.Line.Y).
		Float64("x_min", mon.cfg.Line.XMin).
		Float64("x_max", mon.cfg.Line.XMax).
		Int("queue_size", mon.queue.Cap()).
		Msg("Gate monitor started")
	defer mon.queue.Close()

	for {
		select {
		case <-ctx.Done():
			mon.logger.Info().Msg("Gate monitor stopping")
			return nil

		case <-mon.queue.Done():
			if err := mon.queue.Drain(mon.handle); err != nil {
				return err
			}
			mon.logger.Info().Msg("Gate monitor stopped")
			return nil

		case tick := <-mon.queue.C():
			if err := mon.handle(tick); err != nil {
				return err
			}
		}
	}
}

// Stop closes the queue; Run drains what is left and returns
func (mon *Monitor) Stop() {
	mon.queue.Close()
}

func (mon *Monitor) handle(tick models.Tick) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mon.logger.Error().
				Interface("panic", r).
				Time("tick", tick.Timestamp).
				Msg("Tick processing panic recovered")
			// history may already hold this tick while the machine never saw it
			perr := fmt.Errorf("panic: %v", r)
			mon.fail(perr)
			err = fmt.Errorf("%w: gate %s: %w", ErrMonitorFailed, mon.cfg.ID, perr)
		}
	}()

	mon.metrics.QueueDepth.WithLabelValues(mon.cfg.ID).Set(float64(mon.queue.Len()))

	if _, err := mon.ProcessTick(tick); err != nil {
		return fmt.Errorf("%w: gate %s: %w", ErrMonitorFailed, mon.cfg.ID, err)
	}
	return nil
}

// ProcessTick evaluates one tick synchronously. Only the tick loop may call it
// once Run has started.
func (mon *Monitor) ProcessTick(tick models.Tick) (TickResult, error) {
	if err := mon.Err(); err != nil {
		return TickResult{}, err
	}

	start := time.Now()
	gateID := mon.cfg.ID

	res := mon.detector.Process(tick)
	for _, err := range res.Rejected {
		mon.logger.Debug().Err(err).Time("tick", tick.Timestamp).Msg("Rejected tracked entity")
	}
	if n := len(res.Rejected); n > 0 {
		mon.metrics.RejectedEntities.WithLabelValues(gateID).Add(float64(n))
	}

	for _, ev := range res.Events {
		mon.metrics.Crossings.WithLabelValues(gateID, string(ev.Direction)).Inc()
		mon.logger.Debug().
			Int64("track_id", ev.TrackID).
			Str("direction", string(ev.Direction)).
			Msg("Line crossing")
	}

	evicted := mon.detector.Evict(tick.Timestamp, mon.cfg.HistoryTTL)
	if evicted > 0 {
		mon.metrics.EvictedTracks.WithLabelValues(gateID).Add(float64(evicted))
	}

	out, err := mon.machine.Step(occupancy.Input{
		Now:     tick.Timestamp,
		Events:  res.Events,
		Visible: len(res.Visible),
	})

	result := TickResult{
		Events:   res.Events,
		Rejected: len(res.Rejected),
		Evicted:  evicted,
		Outcome:  out,
	}

	if err != nil {
		mon.fail(err)
		return result, err
	}

	if out.Transition != nil {
		mon.metrics.Transitions.WithLabelValues(gateID, string(out.Transition.From), string(out.Transition.To)).Inc()
		mon.logger.Info().
			Str("from", string(out.Transition.From)).
			Str("to", string(out.Transition.To)).
			Int("current_count", out.Status.CurrentCount).
			Int("total_count", out.Status.TotalCount).
			Msg("Group state changed")
	}

	if out.Alert != nil {
		mon.metrics.AlertsRaised.WithLabelValues(gateID).Inc()
		mon.logger.Warn().
			Int("current_count", out.Alert.CurrentCount).
			Int("threshold", out.Alert.Threshold).
			Msg("🚨 Capacity threshold exceeded")
	}

	mon.metrics.ObserveStatus(gateID, out.Status)
	mon.metrics.TrackedIDs.WithLabelValues(gateID).Set(float64(mon.detector.Len()))
	mon.metrics.ObserveTick(gateID, time.Since(start))

	mon.mu.Lock()
	mon.snapshot.GroupStatus = out.Status
	mon.snapshot.LastTickAt = tick.Timestamp
	mon.snapshot.TicksProcessed++
	mon.snapshot.TrackedIDs = mon.detector.Len()
	mon.mu.Unlock()

	return result, nil
}

func (mon *Monitor) fail(err error) {
	mon.logger.Error().
		Err(err).
		Str("state", string(mon.machine.Status().State)).
		Msg("Group state machine invariant violated, gate stopped")

	mon.mu.Lock()
	mon.failErr = fmt.Errorf("%w: %w", ErrMonitorFailed, err)
	mon.snapshot.Failed = true
	mon.snapshot.Error = err.Error()
	mon.mu.Unlock()

	mon.queue.Close()
}

// Err returns the failure that stopped the gate, if any
func (mon *Monitor) Err() error {
	mon.mu.RLock()
	defer mon.mu.RUnlock()
	return mon.failErr
}

// Snapshot returns a copy of the latest gate status
func (mon *Monitor) Snapshot() models.GateSnapshot {
	mon.mu.RLock()
	snap := mon.snapshot
	mon.mu.RUnlock()

	snap.QueueDepth = mon.queue.Len()
	return snap
}
