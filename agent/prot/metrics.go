package prot

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_transitions_total",
			Help: "Total number of exchange record state transitions",
		},
		[]string{"protocol", "state"},
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "exchange_poll_duration_seconds",
			Help: "Duration of polling a record to its terminal state",
		},
		[]string{"protocol"},
	)
)

func init() {
	prometheus.MustRegister(transitions, pollDuration)
}

// MetricsHandler serves the exchange metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
