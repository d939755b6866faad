package offline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_offline_queue_depth",
			Help: "Number of deferred ops waiting for connectivity",
		},
	)

	replayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_offline_replayed_total",
			Help: "Total number of offline op replay attempts by outcome",
		},
		[]string{"outcome"},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_offline_dropped_total",
			Help: "Total number of offline ops dropped without being applied",
		},
		[]string{"reason"},
	)
)
