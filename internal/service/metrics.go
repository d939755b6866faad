package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sync_compensations_total",
			Help: "Optimistic local mutations rolled back after a failed remote sync",
		},
		[]string{"kind", "operation"},
	)

	reconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_sync_reconciliations_total",
			Help: "Login reconciliations by outcome",
		},
		[]string{"outcome"},
	)
)
