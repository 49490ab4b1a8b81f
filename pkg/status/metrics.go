package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakepool_status_ticks_total",
		Help: "Number of status manager ticks per result.",
	}, []string{"result"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stakepool_status_tick_duration_seconds",
		Help:    "Duration of completed status manager ticks.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	transitionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stakepool_slot_transitions_total",
		Help: "Number of resolved slots per status and failure reason.",
	}, []string{"status", "reason"})

	commitFailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stakepool_status_commit_failures_total",
		Help: "Number of epoch record updates, which couldn't be committed.",
	})

	pendingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stakepool_pending_work",
		Help: "Outstanding work of the latest tick per kind.",
	}, []string{"kind"})
)
