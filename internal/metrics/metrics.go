package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of authenticated calls sent through the gateway.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of gateway requests made (by target service, method and outcome).",
		},
		[]string{"service", "method", "outcome"},
	)

	// Measures duration of requests sent through the gateway.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of gateway requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"service", "method"},
	)

	// Tracks NATS messages processed by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages processed.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks cache hits and misses for credentials.
	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in the credential cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks fetches that went all the way to the secret store.
	CredentialFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_fetches_total",
			Help: "Number of credential fetches against the secret store.",
		},
		[]string{"outcome"}, // success | error
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svclink_errors_total",
			Help: "Count of svclink-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful probe time per target (seconds since epoch).
	LastProbeTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_last_probe_timestamp",
			Help: "Timestamp (unix seconds) of the last successful relay probe.",
		},
		[]string{"target"},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncGatewayRequest(service, method, outcome string) {
	GatewayRequestsTotal.WithLabelValues(service, method, outcome).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncCredentialFetch(outcome string) {
	CredentialFetches.WithLabelValues(outcome).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastProbe(target string, t time.Time) {
	LastProbeTimestamp.WithLabelValues(target).Set(float64(t.Unix()))
}
