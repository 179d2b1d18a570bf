package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tour-counter-go/internal/models"
)

// Metrics holds all application metrics
type Metrics struct {
	TicksProcessed   *prometheus.CounterVec
	TicksDropped     *prometheus.CounterVec
	RejectedEntities *prometheus.CounterVec
	Crossings        *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	AlertsRaised     *prometheus.CounterVec
	EvictedTracks    *prometheus.CounterVec
	PublishDropped   *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec

	CurrentCount *prometheus.GaugeVec
	TotalCount   *prometheus.GaugeVec
	GroupState   *prometheus.GaugeVec
	TrackedIDs   *prometheus.GaugeVec
	QueueDepth   *prometheus.GaugeVec

	TickDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with its own Prometheus registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TicksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_ticks_processed_total",
			Help: "Ticks evaluated by the gate tick loop",
		}, []string{"gate"}),
		TicksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_ticks_dropped_total",
			Help: "Ticks evicted from a full queue",
		}, []string{"gate"}),
		RejectedEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_rejected_entities_total",
			Help: "Tracked entities rejected as malformed",
		}, []string{"gate"}),
		Crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_crossings_total",
			Help: "Accepted line crossings",
		}, []string{"gate", "direction"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_state_transitions_total",
			Help: "Group lifecycle transitions",
		}, []string{"gate", "from", "to"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_alerts_total",
			Help: "Capacity alerts raised",
		}, []string{"gate"}),
		EvictedTracks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_evicted_tracks_total",
			Help: "Track histories evicted after going idle",
		}, []string{"gate"}),
		PublishDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_publish_dropped_total",
			Help: "Status or alert events dropped because the publish buffer was full",
		}, []string{"kind"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_publish_failures_total",
			Help: "Failed deliveries per sink",
		}, []string{"sink", "kind"}),

		CurrentCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tour_current_count",
			Help: "People currently counted inside",
		}, []string{"gate"}),
		TotalCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tour_total_count",
			Help: "Size of the current group",
		}, []string{"gate"}),
		GroupState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tour_group_state",
			Help: "1 for the active lifecycle state of the gate, 0 otherwise",
		}, []string{"gate", "state"}),
		TrackedIDs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tour_tracked_ids",
			Help: "Track histories currently retained",
		}, []string{"gate"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tour_tick_queue_depth",
			Help: "Ticks waiting to be evaluated",
		}, []string{"gate"}),

		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tour_tick_duration_seconds",
			Help:    "Time spent evaluating one tick",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		}, []string{"gate"}),
	}

	m.registry.MustRegister(
		m.TicksProcessed,
		m.TicksDropped,
		m.RejectedEntities,
		m.Crossings,
		m.Transitions,
		m.AlertsRaised,
		m.EvictedTracks,
		m.PublishDropped,
		m.PublishFailures,
		m.CurrentCount,
		m.TotalCount,
		m.GroupState,
		m.TrackedIDs,
		m.QueueDepth,
		m.TickDuration,
	)

	return m
}

// ObserveStatus updates the occupancy gauges for a gate
func (m *Metrics) ObserveStatus(gateID string, status models.GroupStatus) {
	m.CurrentCount.WithLabelValues(gateID).Set(float64(status.CurrentCount))
	m.TotalCount.WithLabelValues(gateID).Set(float64(status.TotalCount))
	for _, s := range models.AllStates {
		v := 0.0
		if s == status.State {
			v = 1
		}
		m.GroupState.WithLabelValues(gateID, string(s)).Set(v)
	}
}

// ObserveTick records the processing latency of one tick
func (m *Metrics) ObserveTick(gateID string, d time.Duration) {
	m.TicksProcessed.WithLabelValues(gateID).Inc()
	m.TickDuration.WithLabelValues(gateID).Observe(d.Seconds())
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
