package aura

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports session health counters for Prometheus scraping.
type Metrics struct {
	sessionsStarted  prometheus.Counter
	reconnects       prometheus.Counter
	failures         *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	signalingLatency prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "session",
			Name:      "starts_total",
			Help:      "Session start attempts.",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Scheduled reconnection attempts.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Session failures by kind.",
		}, []string{"kind"}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "session",
			Name:      "state_transitions_total",
			Help:      "Connection state transitions.",
		}, []string{"from", "to"}),
		signalingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "signaling",
			Name:      "handshake_seconds",
			Help:      "Duration of the full two-hop signaling handshake.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.sessionsStarted.Inc()
	}
}

func (m *Metrics) reconnectScheduled() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) failed(kind FailureKind) {
	if m != nil {
		m.failures.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) transitioned(from, to SessionState) {
	if m != nil {
		m.stateTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (m *Metrics) observeHandshake(d time.Duration) {
	if m != nil {
		m.signalingLatency.Observe(d.Seconds())
	}
}
