package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the notification-path instruments. All methods tolerate a nil
// receiver so wiring metrics stays optional in tests.
type Metrics struct {
	recorded    *prometheus.CounterVec
	recordFails prometheus.Counter
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// NewMetrics registers the notification instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_notifications_recorded_total",
			Help: "Notifications appended to the durable ledger.",
		}, []string{"type"}),
		recordFails: f.NewCounter(prometheus.CounterOpts{
			Name: "agora_notifications_record_failures_total",
			Help: "Ledger writes that failed and were absorbed.",
		}),
		delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_notify_push_delivered_total",
			Help: "Events enqueued to live subscriber sessions.",
		}, []string{"type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_notify_push_dropped_total",
			Help: "Events dropped due to backpressure or teardown.",
		}, []string{"type"}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "agora_notify_live_subscribers",
			Help: "Currently connected live subscriber sessions.",
		}),
	}
}

func (m *Metrics) recordedInc(typ string) {
	if m != nil {
		m.recorded.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) recordFailed() {
	if m != nil {
		m.recordFails.Inc()
	}
}

func (m *Metrics) pushDelivered(typ string) {
	if m != nil {
		m.delivered.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) pushDropped(typ string) {
	if m != nil {
		m.dropped.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) subscriberAdd(delta float64) {
	if m != nil {
		m.subscribers.Add(delta)
	}
}
