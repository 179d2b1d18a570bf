package occupancy

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-counter-go/internal/models"
	"tour-counter-go/internal/services/crossing"
)

type recordingPublisher struct {
	statuses []models.StatusUpdate
	alerts   []models.Alert
}

func (p *recordingPublisher) PublishStatus(u models.StatusUpdate) { p.statuses = append(p.statuses, u) }
func (p *recordingPublisher) PublishAlert(a models.Alert)         { p.alerts = append(p.alerts, a) }

func (p *recordingPublisher) states() []models.GroupState {
	out := make([]models.GroupState, 0, len(p.statuses))
	for _, s := range p.statuses {
		out = append(out, s.State)
	}
	return out
}

func testGate() models.GateConfig {
	return models.GateConfig{
		ID:                "main",
		Line:              models.Boundary{Y: 800, XMin: 600, XMax: 1500},
		CrossingCooldown:  2 * time.Second,
		IdleTimeout:       5 * time.Second,
		FinishedSettle:    time.Second,
		CapacityThreshold: 22,
		AlertCooldown:     10 * time.Second,
	}
}

func enters(n int, now time.Time) []models.CrossingEvent {
	evs := make([]models.CrossingEvent, n)
	for i := range evs {
		evs[i] = models.CrossingEvent{TrackID: int64(i + 1), Direction: models.CrossingEnter, Timestamp: now}
	}
	return evs
}

func leave(id int64, now time.Time) models.CrossingEvent {
	return models.CrossingEvent{TrackID: id, Direction: models.CrossingLeave, Timestamp: now}
}

func at(t0 time.Time, sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

func TestMachineWaitingToEntering(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	m := NewMachine(testGate(), nil, pub)

	out, err := m.Step(Input{Now: t0, Visible: 1})
	require.NoError(t, err)
	require.NotNil(t, out.Transition)
	assert.Equal(t, Transition{From: models.StateWaiting, To: models.StateDetecting}, *out.Transition)

	out, err = m.Step(Input{Now: at(t0, 1), Visible: 1, Events: enters(1, at(t0, 1))})
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatus{CurrentCount: 1, TotalCount: 1, State: models.StateEntering}, out.Status)

	require.Len(t, pub.statuses, 2)
	assert.Equal(t, models.StateDetecting, pub.statuses[1].Previous)
	assert.Equal(t, "main", pub.statuses[1].GateID)
}

func TestMachineEmptyTickInWaitingIsIdempotent(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	m := NewMachine(testGate(), nil, pub)

	for i := 0; i < 5; i++ {
		out, err := m.Step(Input{Now: at(t0, float64(i))})
		require.NoError(t, err)
		assert.Nil(t, out.Transition)
	}

	assert.Equal(t, models.GroupStatus{State: models.StateWaiting}, m.Status())
	assert.Empty(t, pub.statuses)
}

func TestMachineDetectingTimesOut(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	det := crossing.NewDetector(testGate().Line, 0)
	det.Process(models.Tick{Timestamp: t0, Entities: []models.EntityObservation{models.Observe(4, 700, 700)}})
	require.Equal(t, 1, det.Len())

	m := NewMachine(testGate(), det, nil)

	_, err := m.Step(Input{Now: t0, Visible: 1})
	require.NoError(t, err)

	out, err := m.Step(Input{Now: at(t0, 5)})
	require.NoError(t, err)
	assert.Nil(t, out.Transition, "idle timeout is exclusive")

	out, err = m.Step(Input{Now: at(t0, 5.5)})
	require.NoError(t, err)
	require.NotNil(t, out.Transition)
	assert.Equal(t, models.StateWaiting, out.Transition.To)
	assert.Zero(t, det.Len(), "history must be cleared on timeout")
}

func TestMachineDetectingStaysWhileVisible(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMachine(testGate(), nil, nil)

	for i := 0; i <= 10; i++ {
		_, err := m.Step(Input{Now: at(t0, float64(i)), Visible: 2})
		require.NoError(t, err)
	}
	assert.Equal(t, models.StateDetecting, m.Status().State)

	_, err := m.Step(Input{Now: at(t0, 15.5)})
	require.NoError(t, err)
	assert.Equal(t, models.StateWaiting, m.Status().State)
}

func TestMachineFullLifecycle(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	det := crossing.NewDetector(testGate().Line, 2*time.Second)
	m := NewMachine(testGate(), det, pub)

	// Two people walk down across the line; the tick loop drives both components.
	step := func(sec float64, obs ...models.EntityObservation) Outcome {
		t.Helper()
		now := at(t0, sec)
		res := det.Process(models.Tick{Timestamp: now, Entities: obs})
		out, err := m.Step(Input{Now: now, Events: res.Events, Visible: len(res.Visible)})
		require.NoError(t, err)
		return out
	}

	step(0, models.Observe(1, 700, 780), models.Observe(2, 900, 770))
	assert.Equal(t, models.StateDetecting, m.Status().State)

	step(1, models.Observe(1, 700, 810), models.Observe(2, 900, 790))
	assert.Equal(t, models.GroupStatus{CurrentCount: 1, TotalCount: 1, State: models.StateEntering}, m.Status())

	step(2, models.Observe(1, 700, 850), models.Observe(2, 900, 820))
	assert.Equal(t, 2, m.Status().CurrentCount)
	assert.Equal(t, 1, m.Status().TotalCount, "total is captured once, at DETECTING->ENTERING")

	step(7.5, models.Observe(1, 700, 900), models.Observe(2, 900, 900))
	assert.Equal(t, models.StateEntered, m.Status().State)

	// Both come back up, dropping below the captured total.
	step(10, models.Observe(1, 700, 790), models.Observe(2, 900, 780))
	assert.Equal(t, models.StateLeaving, m.Status().State)
	assert.Equal(t, 0, m.Status().CurrentCount)

	// Still visible, so LEAVING holds.
	step(11, models.Observe(2, 900, 770))
	assert.Equal(t, models.StateLeaving, m.Status().State)

	step(14)
	assert.Equal(t, models.StateLeaving, m.Status().State)

	step(16.5)
	assert.Equal(t, models.StateFinished, m.Status().State)

	step(17)
	assert.Equal(t, models.StateFinished, m.Status().State)

	step(17.5)
	assert.Equal(t, models.GroupStatus{State: models.StateWaiting}, m.Status())
	assert.Zero(t, det.Len())

	want := []models.GroupState{
		models.StateDetecting,
		models.StateEntering,
		models.StateEntered,
		models.StateLeaving,
		models.StateFinished,
		models.StateWaiting,
	}
	if diff := cmp.Diff(want, pub.states()); diff != "" {
		t.Errorf("published states mismatch (-want +got):\n%s", diff)
	}

	// A reused id is a fresh sighting: baseline first, no crossing.
	out := step(18, models.Observe(1, 700, 900))
	assert.Equal(t, models.StateDetecting, out.Status.State)
	out = step(19, models.Observe(1, 700, 950))
	assert.Equal(t, 0, out.Status.CurrentCount)
	hist, ok := det.History(1)
	require.True(t, ok)
	assert.False(t, hist.HasEntered)
}

func TestMachineCountNeverNegative(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMachine(testGate(), nil, nil)

	seq := [][]models.CrossingEvent{
		{leave(1, t0)},
		enters(1, t0),
		{leave(1, t0), leave(2, t0), leave(3, t0)},
		enters(2, t0),
		{leave(1, t0)},
	}
	for i, evs := range seq {
		out, err := m.Step(Input{Now: at(t0, float64(i)), Events: evs, Visible: 1})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.Status.CurrentCount, 0)
		assert.GreaterOrEqual(t, out.Status.TotalCount, 0)
	}
}

func TestMachineThresholdAlerts(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("sustained overload alerts once per cooldown window", func(t *testing.T) {
		pub := &recordingPublisher{}
		m := NewMachine(testGate(), nil, pub)

		_, err := m.Step(Input{Now: t0, Visible: 23, Events: enters(23, t0)})
		require.NoError(t, err)
		require.Equal(t, 23, m.Status().CurrentCount)

		for i := 1; i < 10; i++ {
			_, err := m.Step(Input{Now: at(t0, float64(i)), Visible: 23})
			require.NoError(t, err)
		}
		require.Len(t, pub.alerts, 1)
		assert.Equal(t, 23, pub.alerts[0].CurrentCount)
		assert.Equal(t, models.AlertStatusWarning, pub.alerts[0].Status)
		assert.Equal(t, t0, pub.alerts[0].Timestamp)
		assert.NotEmpty(t, pub.alerts[0].ID)

		for i := 10; i < 20; i++ {
			_, err := m.Step(Input{Now: at(t0, float64(i)), Visible: 23})
			require.NoError(t, err)
		}
		require.Len(t, pub.alerts, 2)
		assert.Equal(t, at(t0, 10), pub.alerts[1].Timestamp)
	})

	t.Run("at threshold does not alert", func(t *testing.T) {
		pub := &recordingPublisher{}
		m := NewMachine(testGate(), nil, pub)

		_, err := m.Step(Input{Now: t0, Visible: 22, Events: enters(22, t0)})
		require.NoError(t, err)
		assert.Empty(t, pub.alerts)
	})

	t.Run("alerting does not change the lifecycle", func(t *testing.T) {
		m := NewMachine(testGate(), nil, nil)

		out, err := m.Step(Input{Now: t0, Events: enters(30, t0)})
		require.NoError(t, err)
		require.NotNil(t, out.Alert)
		assert.Nil(t, out.Transition)
		assert.Equal(t, models.StateWaiting, out.Status.State)
	})
}

func TestMachineUnknownState(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	m := NewMachine(testGate(), nil, pub)
	m.status.State = models.GroupState("PAUSED")

	out, err := m.Step(Input{Now: t0, Visible: 1})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownState))
	assert.Nil(t, out.Transition)
	assert.Empty(t, pub.statuses)
}

func TestMachineUnknownStateDoesNotSpendAlertCooldown(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	m := NewMachine(testGate(), nil, pub)
	m.status.State = models.GroupState("PAUSED")

	out, err := m.Step(Input{Now: t0, Events: enters(23, t0), Visible: 23})
	require.ErrorIs(t, err, ErrUnknownState)
	assert.Nil(t, out.Alert)
	assert.Empty(t, pub.alerts)
	assert.Equal(t, 23, out.Status.CurrentCount)

	m.status.State = models.StateEntered
	m.status.TotalCount = 23
	out, err = m.Step(Input{Now: at(t0, 1), Visible: 23})
	require.NoError(t, err)
	require.NotNil(t, out.Alert, "cooldown was not charged by the failed step")
	require.Len(t, pub.alerts, 1)
	assert.Equal(t, 23, pub.alerts[0].CurrentCount)
}

func TestAlertThrottle(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var th AlertThrottle

	assert.True(t, th.Allow(t0, 10*time.Second))
	th.Mark(t0)
	assert.False(t, th.Allow(at(t0, 9.9), 10*time.Second))
	assert.True(t, th.Allow(at(t0, 10), 10*time.Second))
}
