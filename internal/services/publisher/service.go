// Package publisher fans status updates and alerts out to external sinks
// without ever blocking the gate tick loop.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tour-counter-go/internal/metrics"
	"tour-counter-go/internal/models"
)

// Sink is one destination for status updates and alerts
type Sink interface {
	Name() string
	SendStatus(ctx context.Context, update models.StatusUpdate) error
	SendAlert(ctx context.Context, alert models.Alert) error
}

const (
	kindStatus = "status"
	kindAlert  = "alert"
)

type event struct {
	status *models.StatusUpdate
	alert  *models.Alert
}

func (e event) gateID() string {
	if e.alert != nil {
		return e.alert.GateID
	}
	return e.status.GateID
}

func (e event) kind() string {
	if e.alert != nil {
		return kindAlert
	}
	return kindStatus
}

// Options size the dispatch buffer and worker pool. Buffer is per worker.
type Options struct {
	Buffer  int
	Workers int
	Timeout time.Duration
}

// Service is a models.EventPublisher that hands events to a worker pool.
// Events of one gate always land on the same worker so sinks see them in
// publish order. Publishing never blocks: when the worker's buffer is full the
// event is dropped and counted.
type Service struct {
	opts    Options
	sinks   []Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger

	shards []chan event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewService starts the worker pool
func NewService(opts Options, m *metrics.Metrics, logger zerolog.Logger, sinks ...Sink) *Service {
	if opts.Buffer <= 0 {
		opts.Buffer = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Service{
		opts:    opts,
		sinks:   sinks,
		metrics: m,
		logger:  logger.With().Str("service", "publisher").Logger(),
		shards:  make([]chan event, opts.Workers),
	}

	for i := range s.shards {
		s.shards[i] = make(chan event, opts.Buffer)
		s.wg.Add(1)
		go s.worker(s.shards[i])
	}

	names := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		names = append(names, sink.Name())
	}
	s.logger.Info().Strs("sinks", names).Int("workers", opts.Workers).Msg("Publisher started")

	return s
}

// PublishStatus enqueues a status update
func (s *Service) PublishStatus(update models.StatusUpdate) {
	s.enqueue(event{status: &update})
}

// PublishAlert enqueues an alert
func (s *Service) PublishAlert(alert models.Alert) {
	s.enqueue(event{alert: &alert})
}

func (s *Service) enqueue(ev event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.metrics.PublishDropped.WithLabelValues(ev.kind()).Inc()
		return
	}

	select {
	case s.shard(ev.gateID()) <- ev:
	default:
		s.metrics.PublishDropped.WithLabelValues(ev.kind()).Inc()
		s.logger.Warn().Str("kind", ev.kind()).Msg("Publish buffer full, event dropped")
	}
}

func (s *Service) shard(gateID string) chan event {
	if len(s.shards) == 1 {
		return s.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(gateID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Service) worker(events <-chan event) {
	defer s.wg.Done()
	for ev := range events {
		s.deliver(ev)
	}
}

func (s *Service) deliver(ev event) {
	for _, sink := range s.sinks {
		if err := s.send(sink, ev); err != nil {
			s.metrics.PublishFailures.WithLabelValues(sink.Name(), ev.kind()).Inc()
			s.logger.Error().Err(err).Str("sink", sink.Name()).Str("kind", ev.kind()).Msg("Failed to deliver event")
		}
	}
}

func (s *Service) send(sink Sink, ev event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()

	ctx := context.Background()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if ev.alert != nil {
		return sink.SendAlert(ctx, *ev.alert)
	}
	return sink.SendStatus(ctx, *ev.status)
}

// Shutdown stops accepting events and waits for queued ones to be delivered
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, ch := range s.shards {
		close(ch)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Publisher stopped")
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("publisher did not drain"), ctx.Err())
	}
}
