package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakepool_notifications_total",
		Help: "Number of notification deliveries per sink and result.",
	}, []string{"sink", "result"})

	mailCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakepool_mails_total",
		Help: "Number of operator mails per result.",
	}, []string{"result"})
)
