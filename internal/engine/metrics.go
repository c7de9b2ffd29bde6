package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	pollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridmon_poll_total",
			Help: "Total number of entity polls",
		},
		[]string{"entity", "strategy", "status"}, // direct or report; success or error
	)

	pollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridmon_poll_duration_seconds",
			Help:    "Time taken to collect one entity snapshot",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"entity"},
	)

	pollRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridmon_snapshot_records",
			Help: "Number of records in the last successful snapshot",
		},
		[]string{"entity"},
	)

	topologyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridmon_topology_errors_total",
			Help: "Total number of failed topology refreshes",
		},
	)
)
