package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks batch progress.
type Metrics struct {
	ItemsTotal    *prometheus.CounterVec
	Checkpoint    prometheus.Gauge
	ThrottleTotal *prometheus.CounterVec
}

// NewMetrics registers the batch collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Total number of work items attempted by outcome.",
		},
		[]string{"outcome"},
	)
	checkpoint := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batch_checkpoint",
			Help: "Last committed checkpoint index.",
		},
	)
	throttle := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_throttle_seconds_total",
			Help: "Total time spent pausing between items by tier.",
		},
		[]string{"tier"},
	)

	registry.MustRegister(items, checkpoint, throttle)

	return &Metrics{
		ItemsTotal:    items,
		Checkpoint:    checkpoint,
		ThrottleTotal: throttle,
	}
}

// IncItem counts one attempted item.
func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
}

// SetCheckpoint records the committed cursor.
func (m *Metrics) SetCheckpoint(index int) {
	if m == nil {
		return
	}
	m.Checkpoint.Set(float64(index))
}

// AddThrottle records a pause.
func (m *Metrics) AddThrottle(tier Tier, d time.Duration) {
	if m == nil {
		return
	}
	m.ThrottleTotal.WithLabelValues(tier.String()).Add(d.Seconds())
}
