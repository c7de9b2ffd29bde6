package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridmon_jolokia_requests_total",
			Help: "Total number of Jolokia requests sent",
		},
		[]string{"type", "outcome"}, // read, search, exec, version; ok or error
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridmon_jolokia_request_duration_seconds",
			Help:    "Round-trip time of Jolokia requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"type"},
	)
)

func observeRequest(typ, outcome string, start time.Time) {
	requestsTotal.WithLabelValues(typ, outcome).Inc()
	requestDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
}
