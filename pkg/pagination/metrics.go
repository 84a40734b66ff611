package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pagination_pages_total",
		Help: "Total pages requested by outcome",
	}, []string{"outcome"}) // "ok", "error"

	walksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pagination_walks_total",
		Help: "Total catalog walks by result",
	}, []string{"strategy", "result"}) // strategy: "sequential", "batch"; result: "complete", "partial"
)

func recordWalk(strategy string, complete bool) {
	result := "complete"
	if !complete {
		result = "partial"
	}
	walksTotal.WithLabelValues(strategy, result).Inc()
}
