// Package metrics exposes the relay's operational counters as prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons recorded on the events_rejected_total counter.
const (
	ReasonMalformed = "malformed"
	ReasonBadID     = "bad_id"
	ReasonBadSig    = "bad_sig"
)

// Metrics holds the relay's collectors. Create one per process with New and
// share it between the broker and the sessions.
type Metrics struct {
	EventsAccepted   prometheus.Counter
	EventsRejected   *prometheus.CounterVec
	EventsDuplicate  prometheus.Counter
	Deliveries       prometheus.Counter
	ReplayDeliveries prometheus.Counter
	ActiveConns      prometheus.Gauge
	ActiveSubs       prometheus.Gauge
	SlowConsumers    prometheus.Counter
}

// New registers the relay collectors on reg and returns them. Pass
// prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorus",
			Name:      "events_accepted_total",
			Help:      "Events that passed integrity checks and entered the store",
		}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chorus",
			Name:      "events_rejected_total",
			Help:      "Events dropped at the boundary, by reason",
		}, []string{"reason"}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorus",
			Name:      "events_duplicate_total",
			Help:      "Valid events whose id was already stored",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorus",
			Name:      "deliveries_total",
			Help:      "Live event deliveries enqueued to subscriptions",
		}),
		ReplayDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorus",
			Name:      "replay_deliveries_total",
			Help:      "Stored events replayed to new subscriptions",
		}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chorus",
			Name:      "connections_active",
			Help:      "Currently open peer connections",
		}),
		ActiveSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chorus",
			Name:      "subscriptions_active",
			Help:      "Currently registered subscriptions across all connections",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chorus",
			Name:      "slow_consumer_disconnects_total",
			Help:      "Sessions disconnected because their outbound queue overflowed",
		}),
	}
	reg.MustRegister(
		m.EventsAccepted,
		m.EventsRejected,
		m.EventsDuplicate,
		m.Deliveries,
		m.ReplayDeliveries,
		m.ActiveConns,
		m.ActiveSubs,
		m.SlowConsumers,
	)
	return m
}
