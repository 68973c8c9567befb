package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voice_campaigns"

// Metrics exposes counters/histograms for webhook handling, outbound
// provider requests and call initiation. A nil *Metrics is a no-op.
type Metrics struct {
	webhookTotal    *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	callsInitiated  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Voice provider webhook events by type and outcome",
		}, []string{"event_type", "outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing including CRM calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Outbound provider requests by provider, operation and HTTP status (0 = no response)",
		}, []string{"provider", "operation", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of outbound provider requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		callsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "initiated_total",
			Help:      "Outbound call attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.webhookLatency, m.upstreamTotal, m.upstreamLatency, m.callsInitiated)
	return m
}

func (m *Metrics) ObserveWebhook(eventType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, outcome).Inc()
	m.webhookLatency.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUpstream(provider, operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(provider, operation, strconv.Itoa(status)).Inc()
	m.upstreamLatency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCallInitiated(provider, outcome string) {
	if m == nil {
		return
	}
	m.callsInitiated.WithLabelValues(provider, outcome).Inc()
}
