package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_quota_rejections_total",
		Help: "Total number of requests rejected by a quota check",
	}, []string{"kind"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_limit_notifications_total",
		Help: "Limit breach notifications by outcome",
	}, []string{"outcome"})
)
