package occupancy

import "time"

// AlertThrottle gates outbound alerts to one per cooldown window
type AlertThrottle struct {
	LastAlertTime time.Time
}

// Allow reports whether an alert may be sent at now
func (t *AlertThrottle) Allow(now time.Time, cooldown time.Duration) bool {
	if t.LastAlertTime.IsZero() {
		return true
	}
	return now.Sub(t.LastAlertTime) >= cooldown
}

// Mark records that an alert was sent at now
func (t *AlertThrottle) Mark(now time.Time) {
	t.LastAlertTime = now
}
