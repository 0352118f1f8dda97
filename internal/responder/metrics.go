package responder

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	probeResultProcessed   = "processed"
	probeResultQueueFull   = "queue_full"
	probeResultRateLimited = "rate_limited"
	probeResultClosed      = "closed"

	deliveryResultSuccess = "success"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	probesTotal     *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	deliverySeconds prometheus.Histogram
	matchedServices prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "argo",
				Subsystem: "responder",
				Name:      "probes_total",
				Help:      "Number of probes received, by outcome.",
			}, []string{"result"}),
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "argo",
				Subsystem: "responder",
				Name:      "deliveries_total",
				Help:      "Number of response deliveries, by outcome.",
			}, []string{"payload", "result"}),
		deliverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "argo",
			Subsystem: "responder",
			Name:      "delivery_seconds",
			Help:      "Latency of response deliveries.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11), // 5ms .. ~5s
		}),
		matchedServices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "argo",
			Subsystem: "responder",
			Name:      "matched_services",
			Help:      "Number of services in each merged response.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 .. 128
		}),
	}
	if reg != nil {
		reg.MustRegister(m.probesTotal, m.deliveriesTotal, m.deliverySeconds, m.matchedServices)
	}
	return m
}
