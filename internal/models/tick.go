package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedEntity marks a tracked entity that is missing its id or position
var ErrMalformedEntity = errors.New("malformed tracked entity")

// Point is a 2D position in pixel or normalized image space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TrackedEntity is a validated tracker output for one object in one tick
type TrackedEntity struct {
	ID        int64     `json:"id"`
	Position  Point     `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// EntityObservation is a tracker output as received on the wire. Fields are
// optional so that missing values can be told apart from zero.
type EntityObservation struct {
	ID *int64   `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

// Entity validates the observation and converts it to a TrackedEntity
func (o EntityObservation) Entity(ts time.Time) (TrackedEntity, error) {
	if o.ID == nil {
		return TrackedEntity{}, fmt.Errorf("%w: missing id", ErrMalformedEntity)
	}
	if o.X == nil || o.Y == nil {
		return TrackedEntity{}, fmt.Errorf("%w: id %d has no position", ErrMalformedEntity, *o.ID)
	}
	if !isFinite(*o.X) || !isFinite(*o.Y) {
		return TrackedEntity{}, fmt.Errorf("%w: id %d has non-finite position", ErrMalformedEntity, *o.ID)
	}

	return TrackedEntity{
		ID:        *o.ID,
		Position:  Point{X: *o.X, Y: *o.Y},
		Timestamp: ts,
	}, nil
}

// Observe builds a well-formed observation
func Observe(id int64, x, y float64) EntityObservation {
	return EntityObservation{ID: &id, X: &x, Y: &y}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Tick is one batch of tracker output. Order within Entities is irrelevant.
type Tick struct {
	Timestamp time.Time           `json:"timestamp"`
	Entities  []EntityObservation `json:"entities"`
}

// TickRequest is the ingestion payload accepted over HTTP
type TickRequest struct {
	Timestamp *time.Time          `json:"timestamp,omitempty"`
	Entities  []EntityObservation `json:"entities"`
}

// Tick converts the request to a Tick, stamping it with now when no timestamp was sent
func (r TickRequest) Tick(now time.Time) Tick {
	ts := now
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		ts = *r.Timestamp
	}
	return Tick{Timestamp: ts, Entities: r.Entities}
}

// TickAccepted is returned once a tick has been queued for a gate
type TickAccepted struct {
	GateID    string    `json:"gate_id"`
	Timestamp time.Time `json:"timestamp"`
	Entities  int       `json:"entities"`
	Malformed int       `json:"malformed"`
}

// CountMalformed returns how many observations in the tick would be rejected
func (t Tick) CountMalformed() int {
	n := 0
	for _, o := range t.Entities {
		if _, err := o.Entity(t.Timestamp); err != nil {
			n++
		}
	}
	return n
}

// CrossingDirection is the outcome of checking one entity against the gate line
type CrossingDirection string

const (
	CrossingNone  CrossingDirection = "NONE"
	CrossingEnter CrossingDirection = "ENTER"
	CrossingLeave CrossingDirection = "LEAVE"
)

// CrossingEvent is an accepted ENTER or LEAVE of the line by one track
type CrossingEvent struct {
	TrackID   int64             `json:"track_id"`
	Direction CrossingDirection `json:"direction"`
	Timestamp time.Time         `json:"timestamp"`
}

// TrackHistory is the per-track state retained between ticks
type TrackHistory struct {
	LastY         float64
	HasLastY      bool
	LastEventTime time.Time
	LastSeen      time.Time
	HasEntered    bool
	HasLeft       bool
}
