package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_rate_limit_rejections_total",
		Help: "Total number of hits rejected by a rate limiter",
	}, []string{"rule"})

	storeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filevault_rate_limit_store_errors_total",
		Help: "Rate limit store failures that fell back to in-memory counting",
	})
)
