package models

import (
	"time"
)

// AlertStatus is the status carried by occupancy alerts
type AlertStatus string

const (
	AlertStatusWarning AlertStatus = "WARNING"
)

// Alert is raised when the current count exceeds the capacity threshold
type Alert struct {
	ID           string      `json:"id"`
	GateID       string      `json:"gate_id"`
	CurrentCount int         `json:"current_count"`
	Threshold    int         `json:"threshold"`
	Status       AlertStatus `json:"status"`
	Timestamp    time.Time   `json:"timestamp"`
}

// EventPublisher receives status and alert copies from the occupancy state machine.
// Implementations must not block the caller.
type EventPublisher interface {
	PublishStatus(update StatusUpdate)
	PublishAlert(alert Alert)
}

// NopPublisher discards everything it is given
type NopPublisher struct{}

func (NopPublisher) PublishStatus(StatusUpdate) {}
func (NopPublisher) PublishAlert(Alert)         {}
