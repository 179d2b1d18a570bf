package models

import (
	"errors"
	"fmt"
	"time"
)

// GroupState represents a phase in the lifecycle of a group passing the gate
type GroupState string

const (
	StateWaiting   GroupState = "WAITING"
	StateDetecting GroupState = "DETECTING"
	StateEntering  GroupState = "ENTERING"
	StateEntered   GroupState = "ENTERED"
	StateLeaving   GroupState = "LEAVING"
	StateFinished  GroupState = "FINISHED"
)

// String returns the string representation of GroupState
func (s GroupState) String() string {
	return string(s)
}

// IsValid checks if the group state is one of the known lifecycle states
func (s GroupState) IsValid() bool {
	switch s {
	case StateWaiting, StateDetecting, StateEntering, StateEntered, StateLeaving, StateFinished:
		return true
	default:
		return false
	}
}

// AllStates lists the lifecycle states in cycle order
var AllStates = []GroupState{
	StateWaiting,
	StateDetecting,
	StateEntering,
	StateEntered,
	StateLeaving,
	StateFinished,
}

// GroupStatus is the occupancy snapshot published on every transition
type GroupStatus struct {
	CurrentCount int        `json:"current_count"`
	TotalCount   int        `json:"total_count"`
	State        GroupState `json:"status"`
}

// StatusUpdate is a copy of GroupStatus handed to publishers after a transition
type StatusUpdate struct {
	GateID    string     `json:"gate_id"`
	Previous  GroupState `json:"previous_status"`
	Timestamp time.Time  `json:"timestamp"`
	GroupStatus
}

// GateSnapshot is the read-only view of a gate served to API clients
type GateSnapshot struct {
	GateID         string    `json:"gate_id"`
	Line           Boundary  `json:"boundary"`
	LastTickAt     time.Time `json:"last_tick_at,omitempty"`
	TicksProcessed int64     `json:"ticks_processed"`
	TrackedIDs     int       `json:"tracked_ids"`
	QueueDepth     int       `json:"queue_depth"`
	Failed         bool      `json:"failed"`
	Error          string    `json:"error,omitempty"`
	GroupStatus
}

// Boundary is a horizontal gate line spanning [XMin, XMax] at height Y
type Boundary struct {
	Y    float64 `json:"y"`
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
}

// Contains reports whether x lies within the horizontal extent of the gate
func (b Boundary) Contains(x float64) bool {
	return x >= b.XMin && x <= b.XMax
}

// ErrInvalidGateConfig is returned when a gate configuration is rejected
var ErrInvalidGateConfig = errors.New("invalid gate configuration")

// GateConfig holds the tuning of a single monitored boundary
type GateConfig struct {
	ID                string
	Line              Boundary
	CrossingCooldown  time.Duration
	IdleTimeout       time.Duration
	FinishedSettle    time.Duration
	CapacityThreshold int
	AlertCooldown     time.Duration
	// HistoryTTL evicts per-track history unseen for this long. Zero disables eviction.
	HistoryTTL time.Duration
}

// Validate rejects configurations that cannot be evaluated
func (g GateConfig) Validate() error {
	switch {
	case g.ID == "":
		return fmt.Errorf("%w: gate id is required", ErrInvalidGateConfig)
	case g.Line.XMin > g.Line.XMax:
		return fmt.Errorf("%w: x_min %.2f is greater than x_max %.2f", ErrInvalidGateConfig, g.Line.XMin, g.Line.XMax)
	case g.CrossingCooldown < 0:
		return fmt.Errorf("%w: crossing cooldown must not be negative", ErrInvalidGateConfig)
	case g.IdleTimeout < 0:
		return fmt.Errorf("%w: idle timeout must not be negative", ErrInvalidGateConfig)
	case g.FinishedSettle < 0:
		return fmt.Errorf("%w: finished settle delay must not be negative", ErrInvalidGateConfig)
	case g.AlertCooldown < 0:
		return fmt.Errorf("%w: alert cooldown must not be negative", ErrInvalidGateConfig)
	case g.CapacityThreshold < 0:
		return fmt.Errorf("%w: capacity threshold must not be negative", ErrInvalidGateConfig)
	case g.HistoryTTL < 0:
		return fmt.Errorf("%w: history ttl must not be negative", ErrInvalidGateConfig)
	}
	return nil
}
