// Package crossing turns per-tick tracker positions into ENTER/LEAVE events
// against a horizontal gate line.
package crossing

import (
	"time"

	"tour-counter-go/internal/models"
)

// Detect checks one entity against the line and updates its history in place.
//
// Entities outside the gate's horizontal extent, or still inside the cooldown
// window of their previous crossing, are skipped without touching history. The
// first sighting only records a baseline. ENTER and LEAVE are each emitted at
// most once per history lifetime.
func Detect(entity models.TrackedEntity, hist *models.TrackHistory, line models.Boundary, now time.Time, cooldown time.Duration) models.CrossingDirection {
	if !line.Contains(entity.Position.X) {
		return models.CrossingNone
	}

	hist.LastSeen = now

	if !hist.LastEventTime.IsZero() && now.Sub(hist.LastEventTime) < cooldown {
		return models.CrossingNone
	}

	y := entity.Position.Y
	if !hist.HasLastY {
		hist.LastY = y
		hist.HasLastY = true
		return models.CrossingNone
	}

	direction := models.CrossingNone
	switch {
	case hist.LastY < line.Y && y >= line.Y && !hist.HasEntered:
		hist.HasEntered = true
		direction = models.CrossingEnter
	case hist.LastY > line.Y && y <= line.Y && !hist.HasLeft:
		hist.HasLeft = true
		direction = models.CrossingLeave
	}

	if direction != models.CrossingNone {
		hist.LastEventTime = now
	}
	hist.LastY = y

	return direction
}

// Result is the outcome of running the detector over one tick
type Result struct {
	Events   []models.CrossingEvent
	Visible  []int64
	Rejected []error
}

// Detector owns the track history of one gate
type Detector struct {
	line     models.Boundary
	cooldown time.Duration
	history  map[int64]*models.TrackHistory
}

// NewDetector creates a detector for the given gate line
func NewDetector(line models.Boundary, cooldown time.Duration) *Detector {
	return &Detector{
		line:     line,
		cooldown: cooldown,
		history:  make(map[int64]*models.TrackHistory),
	}
}

// Process runs every observation of the tick through Detect. Malformed
// observations are collected in Result.Rejected and do not stop the batch.
// Visible lists the ids that were inside the gate's horizontal extent.
func (d *Detector) Process(tick models.Tick) Result {
	var res Result
	now := tick.Timestamp

	for _, obs := range tick.Entities {
		entity, err := obs.Entity(now)
		if err != nil {
			res.Rejected = append(res.Rejected, err)
			continue
		}

		if !d.line.Contains(entity.Position.X) {
			continue
		}
		res.Visible = append(res.Visible, entity.ID)

		hist, ok := d.history[entity.ID]
		if !ok {
			hist = &models.TrackHistory{}
			d.history[entity.ID] = hist
		}

		if dir := Detect(entity, hist, d.line, now, d.cooldown); dir != models.CrossingNone {
			res.Events = append(res.Events, models.CrossingEvent{
				TrackID:   entity.ID,
				Direction: dir,
				Timestamp: now,
			})
		}
	}

	return res
}

// Reset clears all track history
func (d *Detector) Reset() {
	clear(d.history)
}

// Evict drops history entries not seen for longer than ttl and returns how many were removed
func (d *Detector) Evict(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	removed := 0
	for id, hist := range d.history {
		if now.Sub(hist.LastSeen) > ttl {
			delete(d.history, id)
			removed++
		}
	}
	return removed
}

// History returns a copy of the history kept for a track
func (d *Detector) History(id int64) (models.TrackHistory, bool) {
	hist, ok := d.history[id]
	if !ok {
		return models.TrackHistory{}, false
	}
	return *hist, true
}

// Len returns the number of tracks with retained history
func (d *Detector) Len() int {
	return len(d.history)
}
