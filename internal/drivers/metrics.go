package drivers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_store_location_updates_total",
		Help: "Total number of driver location updates applied to the state store",
	}, []string{"backend"})

	cellMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_store_cell_moves_total",
		Help: "Total number of H3 cell index moves",
	}, []string{"backend"})

	nearbyQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_store_nearby_queries_total",
		Help: "Total number of nearby-driver queries",
	}, []string{"backend"})

	nearbyQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "driver_store_nearby_query_duration_seconds",
		Help:    "Latency of nearby-driver queries",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"backend"})

	trackedCellsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driver_store_tracked_cells",
		Help: "Number of H3 cells with at least one indexed driver",
	}, []string{"backend"})

	queuedWritesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driver_store_queued_writes",
		Help: "Pending dirty-location and status writes awaiting flush",
	}, []string{"backend"})

	flushFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_store_flush_failures_total",
		Help: "Persistent writes dropped after exhausting retries",
	}, []string{"backend", "kind"})

	onlineDriversGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driver_store_online_drivers",
		Help: "Drivers currently in the online set",
	}, []string{"backend"})
)
