package crossing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-counter-go/internal/models"
)

var testLine = models.Boundary{Y: 800, XMin: 600, XMax: 1500}

func tickAt(t0 time.Time, sec float64, obs ...models.EntityObservation) models.Tick {
	return models.Tick{
		Timestamp: t0.Add(time.Duration(sec * float64(time.Second))),
		Entities:  obs,
	}
}

func TestDetect(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("first sighting records baseline only", func(t *testing.T) {
		hist := &models.TrackHistory{}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 700, Y: 810}}

		dir := Detect(e, hist, testLine, t0, 2*time.Second)

		assert.Equal(t, models.CrossingNone, dir)
		assert.True(t, hist.HasLastY)
		assert.Equal(t, 810.0, hist.LastY)
	})

	t.Run("downward crossing is an enter", func(t *testing.T) {
		hist := &models.TrackHistory{LastY: 790, HasLastY: true}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 700, Y: 810}}

		dir := Detect(e, hist, testLine, t0, 2*time.Second)

		assert.Equal(t, models.CrossingEnter, dir)
		assert.True(t, hist.HasEntered)
		assert.Equal(t, t0, hist.LastEventTime)
		assert.Equal(t, 810.0, hist.LastY)
	})

	t.Run("landing exactly on the line counts", func(t *testing.T) {
		hist := &models.TrackHistory{LastY: 790, HasLastY: true}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 700, Y: 800}}

		assert.Equal(t, models.CrossingEnter, Detect(e, hist, testLine, t0, 0))
	})

	t.Run("upward crossing is a leave", func(t *testing.T) {
		hist := &models.TrackHistory{LastY: 820, HasLastY: true}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 700, Y: 780}}

		dir := Detect(e, hist, testLine, t0, 2*time.Second)

		assert.Equal(t, models.CrossingLeave, dir)
		assert.True(t, hist.HasLeft)
	})

	t.Run("outside horizontal extent is ignored", func(t *testing.T) {
		hist := &models.TrackHistory{LastY: 790, HasLastY: true}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 100, Y: 810}}

		dir := Detect(e, hist, testLine, t0, 2*time.Second)

		assert.Equal(t, models.CrossingNone, dir)
		assert.Equal(t, 790.0, hist.LastY, "position must not be updated outside the gate")
	})

	t.Run("cooldown suppresses crossings and position updates", func(t *testing.T) {
		hist := &models.TrackHistory{LastY: 790, HasLastY: true, LastEventTime: t0}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 700, Y: 810}}

		dir := Detect(e, hist, testLine, t0.Add(time.Second), 2*time.Second)

		assert.Equal(t, models.CrossingNone, dir)
		assert.Equal(t, 790.0, hist.LastY)
	})

	t.Run("enter is one-shot per history", func(t *testing.T) {
		hist := &models.TrackHistory{LastY: 790, HasLastY: true, HasEntered: true}
		e := models.TrackedEntity{ID: 1, Position: models.Point{X: 700, Y: 810}}

		assert.Equal(t, models.CrossingNone, Detect(e, hist, testLine, t0, 0))
		assert.Equal(t, 810.0, hist.LastY)
	})
}

func TestDetectorProcess(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("single entity crossing downward yields one enter", func(t *testing.T) {
		d := NewDetector(testLine, 2*time.Second)

		res := d.Process(tickAt(t0, 0, models.Observe(1, 700, 790)))
		assert.Empty(t, res.Events)
		assert.Equal(t, []int64{1}, res.Visible)

		res = d.Process(tickAt(t0, 1, models.Observe(1, 700, 810)))
		require.Len(t, res.Events, 1)
		assert.Equal(t, int64(1), res.Events[0].TrackID)
		assert.Equal(t, models.CrossingEnter, res.Events[0].Direction)
	})

	t.Run("jitter across the line inside the cooldown counts once", func(t *testing.T) {
		d := NewDetector(testLine, 3*time.Second)
		ys := []float64{790, 805, 795, 806, 798, 810}

		var enters int
		for i, y := range ys {
			res := d.Process(tickAt(t0, 0.5*float64(i), models.Observe(7, 900, y)))
			for _, ev := range res.Events {
				if ev.Direction == models.CrossingEnter {
					enters++
				}
			}
		}
		assert.Equal(t, 1, enters)
	})

	t.Run("repeated enter after cooldown is still blocked by the one-shot flag", func(t *testing.T) {
		d := NewDetector(testLine, time.Second)
		d.Process(tickAt(t0, 0, models.Observe(3, 700, 790)))
		d.Process(tickAt(t0, 1, models.Observe(3, 700, 810)))
		d.Process(tickAt(t0, 5, models.Observe(3, 700, 790)))
		res := d.Process(tickAt(t0, 10, models.Observe(3, 700, 810)))

		assert.Empty(t, res.Events)
	})

	t.Run("malformed entities are rejected without aborting the batch", func(t *testing.T) {
		d := NewDetector(testLine, 2*time.Second)
		x, y := 700.0, 790.0
		id := int64(9)

		res := d.Process(tickAt(t0, 0,
			models.EntityObservation{X: &x, Y: &y},
			models.EntityObservation{ID: &id},
			models.Observe(2, 700, 790),
		))

		require.Len(t, res.Rejected, 2)
		for _, err := range res.Rejected {
			assert.True(t, errors.Is(err, models.ErrMalformedEntity))
		}
		assert.Equal(t, []int64{2}, res.Visible)
		assert.Equal(t, 1, d.Len())
	})

	t.Run("reset clears history so reused ids start from a baseline", func(t *testing.T) {
		d := NewDetector(testLine, 0)
		d.Process(tickAt(t0, 0, models.Observe(1, 700, 790)))
		d.Reset()
		assert.Zero(t, d.Len())

		res := d.Process(tickAt(t0, 1, models.Observe(1, 700, 810)))
		assert.Empty(t, res.Events)

		hist, ok := d.History(1)
		require.True(t, ok)
		assert.False(t, hist.HasEntered)
	})

	t.Run("evict drops stale tracks only", func(t *testing.T) {
		d := NewDetector(testLine, 0)
		d.Process(tickAt(t0, 0, models.Observe(1, 700, 790), models.Observe(2, 700, 790)))
		d.Process(tickAt(t0, 50, models.Observe(2, 700, 790)))

		removed := d.Evict(t0.Add(61*time.Second), time.Minute)

		assert.Equal(t, 1, removed)
		_, ok := d.History(1)
		assert.False(t, ok)
		_, ok = d.History(2)
		assert.True(t, ok)
	})
}
