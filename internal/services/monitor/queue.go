package monitor

import (
	"context"
	"errors"
	"sync"

	"tour-counter-go/internal/models"
)

// ErrQueueClosed is returned when submitting to a stopped gate
var ErrQueueClosed = errors.New("tick queue closed")

// Backpressure decides what Push does when the queue is full
type Backpressure int

const (
	// DropOldest evicts the oldest queued tick to make room
	DropOldest Backpressure = iota
	// Block waits for space or for the context to end
	Block
)

// TickQueue is a bounded FIFO of ticks with a single consumer
type TickQueue struct {
	mode Backpressure
	ch   chan models.Tick

	// mu guards closed and pending, and serializes drop-oldest producers so
	// evict+send is not interleaved
	mu      sync.Mutex
	closed  bool
	pending int
	settled chan struct{}
	done    chan struct{}
}

// NewTickQueue creates a queue holding up to size ticks
func NewTickQueue(size int, mode Backpressure) *TickQueue {
	if size <= 0 {
		size = 1
	}
	return &TickQueue{
		mode:    mode,
		ch:      make(chan models.Tick, size),
		settled: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Push enqueues a tick. It reports how many older ticks were dropped to make room.
// A tick accepted while Close runs is still handed to Drain.
func (q *TickQueue) Push(ctx context.Context, tick models.Tick) (int, error) {
	if q.mode == Block {
		return 0, q.pushBlocking(ctx, tick)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	dropped := 0
	for {
		select {
		case q.ch <- tick:
			return dropped, nil
		default:
		}

		select {
		case <-q.ch:
			dropped++
		default:
		}
	}
}

func (q *TickQueue) pushBlocking(ctx context.Context, tick models.Tick) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending++
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
		select {
		case q.settled <- struct{}{}:
		default:
		}
	}()

	select {
	case q.ch <- tick:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain hands every remaining tick to fn once the queue is closed. It returns
// after the queue is empty and no producer can still add to it, or on the
// first error from fn.
func (q *TickQueue) Drain(fn func(models.Tick) error) error {
	for {
		select {
		case tick := <-q.ch:
			if err := fn(tick); err != nil {
				return err
			}
			continue
		default:
		}

		q.mu.Lock()
		idle := q.closed && q.pending == 0 && len(q.ch) == 0
		q.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case tick := <-q.ch:
			if err := fn(tick); err != nil {
				return err
			}
		case <-q.settled:
		}
	}
}

// C returns the receive side of the queue
func (q *TickQueue) C() <-chan models.Tick {
	return q.ch
}

// Done is closed once the queue stops accepting ticks
func (q *TickQueue) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of queued ticks
func (q *TickQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity
func (q *TickQueue) Cap() int {
	return cap(q.ch)
}

// Close stops accepting ticks. Queued ticks are left for the consumer to drain.
func (q *TickQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}
