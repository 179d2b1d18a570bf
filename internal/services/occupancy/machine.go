// Package occupancy drives the group lifecycle state machine for one gate.
//
// The machine consumes crossing events produced by the crossing package and
// keeps the current and total counts of the group passing the gate:
//
//	WAITING -> DETECTING -> ENTERING -> ENTERED -> LEAVING -> FINISHED -> WAITING
//
// At most one transition is taken per tick. Every transition publishes a status
// copy; threshold alerts are evaluated on every tick independently of the
// lifecycle and are rate limited by an AlertThrottle.
package occupancy

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tour-counter-go/internal/models"
)

// ErrUnknownState is returned when the machine finds itself in a state it has no rule for
var ErrUnknownState = errors.New("unknown group state")

// HistoryResetter clears per-track crossing history on group reset
type HistoryResetter interface {
	Reset()
}

// Input is everything the machine needs from one tick
type Input struct {
	Now     time.Time
	Events  []models.CrossingEvent
	Visible int
}

// Transition describes a state change taken during a step
type Transition struct {
	From models.GroupState
	To   models.GroupState
}

// Outcome reports what a step did
type Outcome struct {
	Status     models.GroupStatus
	Transition *Transition
	Alert      *models.Alert
}

// Machine is the occupancy state machine of one gate. It is not safe for
// concurrent use; all calls must come from the gate's tick loop.
type Machine struct {
	cfg       models.GateConfig
	publisher models.EventPublisher
	history   HistoryResetter

	status   models.GroupStatus
	throttle AlertThrottle

	phaseEnteredAt time.Time
	lastEnterAt    time.Time
	lastSeenAt     time.Time
}

// NewMachine creates a machine in WAITING
func NewMachine(cfg models.GateConfig, history HistoryResetter, publisher models.EventPublisher) *Machine {
	if publisher == nil {
		publisher = models.NopPublisher{}
	}
	return &Machine{
		cfg:       cfg,
		publisher: publisher,
		history:   history,
		status:    models.GroupStatus{State: models.StateWaiting},
	}
}

// Status returns a copy of the current group status
func (m *Machine) Status() models.GroupStatus {
	return m.status
}

// Step applies the tick's crossing events to the counts, then evaluates the
// transition table and the threshold alert against those counts. An unknown
// state stops the step before any alert is raised.
func (m *Machine) Step(in Input) (Outcome, error) {
	now := in.Now

	for _, ev := range in.Events {
		switch ev.Direction {
		case models.CrossingEnter:
			m.status.CurrentCount++
			m.lastEnterAt = now
		case models.CrossingLeave:
			if m.status.CurrentCount > 0 {
				m.status.CurrentCount--
			}
		}
	}

	if in.Visible > 0 {
		m.lastSeenAt = now
	}

	out := Outcome{}

	next, err := m.next(in)
	if err != nil {
		out.Status = m.status
		return out, err
	}

	// counts are final here; the alert sees them before any reset on entry to WAITING
	out.Alert = m.checkThreshold(now)

	if next != m.status.State {
		tr := Transition{From: m.status.State, To: next}
		m.enter(next, now)
		out.Transition = &tr

		m.publisher.PublishStatus(models.StatusUpdate{
			GateID:      m.cfg.ID,
			Previous:    tr.From,
			Timestamp:   now,
			GroupStatus: m.status,
		})
	}

	if out.Alert != nil {
		m.publisher.PublishAlert(*out.Alert)
	}

	out.Status = m.status
	return out, nil
}

func (m *Machine) next(in Input) (models.GroupState, error) {
	now := in.Now
	idle := m.cfg.IdleTimeout
	state := m.status.State

	switch state {
	case models.StateWaiting:
		if in.Visible > 0 {
			return models.StateDetecting, nil
		}

	case models.StateDetecting:
		if m.status.CurrentCount > 0 {
			return models.StateEntering, nil
		}
		quietSince := m.phaseEnteredAt
		if m.lastSeenAt.After(quietSince) {
			quietSince = m.lastSeenAt
		}
		if in.Visible == 0 && now.Sub(quietSince) > idle {
			return models.StateWaiting, nil
		}

	case models.StateEntering:
		if now.Sub(m.lastEnterAt) > idle {
			return models.StateEntered, nil
		}

	case models.StateEntered:
		if m.status.CurrentCount < m.status.TotalCount {
			return models.StateLeaving, nil
		}

	case models.StateLeaving:
		if in.Visible == 0 && now.Sub(m.lastSeenAt) > idle {
			return models.StateFinished, nil
		}

	case models.StateFinished:
		if now.Sub(m.phaseEnteredAt) >= m.cfg.FinishedSettle {
			return models.StateWaiting, nil
		}

	default:
		return state, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}

	return state, nil
}

// enter applies the side effects of moving into a state
func (m *Machine) enter(to models.GroupState, now time.Time) {
	from := m.status.State

	switch {
	case from == models.StateDetecting && to == models.StateEntering:
		m.status.TotalCount = m.status.CurrentCount
	case to == models.StateWaiting:
		m.reset()
	}

	m.status.State = to
	m.phaseEnteredAt = now
}

// reset clears counts and crossing history in one step so the next group
// starts from a clean baseline
func (m *Machine) reset() {
	m.status.CurrentCount = 0
	m.status.TotalCount = 0
	m.lastEnterAt = time.Time{}
	m.lastSeenAt = time.Time{}
	if m.history != nil {
		m.history.Reset()
	}
}

func (m *Machine) checkThreshold(now time.Time) *models.Alert {
	if m.status.CurrentCount <= m.cfg.CapacityThreshold {
		return nil
	}
	if !m.throttle.Allow(now, m.cfg.AlertCooldown) {
		return nil
	}

	m.throttle.Mark(now)
	return &models.Alert{
		ID:           uuid.NewString(),
		GateID:       m.cfg.ID,
		CurrentCount: m.status.CurrentCount,
		Threshold:    m.cfg.CapacityThreshold,
		Status:       models.AlertStatusWarning,
		Timestamp:    now,
	}
}
