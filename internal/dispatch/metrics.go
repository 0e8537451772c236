package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ridedispatch",
		Subsystem: "dispatch",
		Name:      "attempts_total",
		Help:      "Ride offer fan-out attempts.",
	})

	dispatchTargetedDrivers = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ridedispatch",
		Subsystem: "dispatch",
		Name:      "targeted_drivers",
		Help:      "Drivers targeted per fan-out.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	dispatchNoReceiversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ridedispatch",
		Subsystem: "dispatch",
		Name:      "no_receivers_total",
		Help:      "Fan-outs where targeted drivers existed but none were connected.",
	})

	dispatchPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ridedispatch",
		Subsystem: "dispatch",
		Name:      "publish_errors_total",
		Help:      "Offer publishes that failed after retries.",
	})
)
