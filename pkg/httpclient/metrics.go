package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_client_attempts_total",
			Help: "Total number of outbound HTTP attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_client_retries_total",
			Help: "Total number of outbound HTTP retries after a transient failure",
		},
		[]string{"operation"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	circuitBreakerRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejected_total",
			Help: "Total number of calls rejected while the circuit breaker was open",
		},
		[]string{"name"},
	)

	offlineDeferredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_client_deferred_total",
			Help: "Total number of calls deferred to the offline queue because the client was offline",
		},
		[]string{"operation"},
	)
)
