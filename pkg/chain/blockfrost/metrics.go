package blockfrost

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stakepool",
	Subsystem: "chain",
	Name:      "queries_total",
	Help:      "Queries to the chain data API by endpoint kind and result.",
}, []string{"endpoint", "result"})
