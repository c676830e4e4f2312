// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLen atomic.Pointer[func() int]

var (
	// Command metrics
	CommandsInvoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishie_commands_invoked_total",
			Help: "Total number of commands invoked",
		},
		[]string{"command"},
	)

	CommandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishie_command_errors_total",
			Help: "Total number of commands that failed, by kind (user or internal)",
		},
		[]string{"command", "kind"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fishie_command_duration_seconds",
			Help:    "Duration of command execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Gateway event metrics
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishie_events_handled_total",
			Help: "Total number of gateway events handled",
		},
		[]string{"event_type"},
	)

	HistoryEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishie_history_entries_total",
			Help: "Total number of history rows recorded, by table",
		},
		[]string{"table"},
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishie_database_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type"}, // "query" or "exec"
	)

	DatabaseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fishie_database_errors_total",
			Help: "Total number of database errors",
		},
	)

	DatabaseQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fishie_database_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Download metrics
	Downloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fishie_downloads_total",
			Help: "Total number of media downloads, by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// Cache metrics, read at scrape time from the function given to
	// TrackCacheEntries.
	CacheEntries = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "fishie_settings_cache_entries",
			Help: "Number of entries held by the settings cache",
		},
		func() float64 {
			if fn := cacheLen.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	)

	GatewayConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fishie_gateway_connected",
			Help: "Status of the Discord gateway connection (1=connected, 0=disconnected)",
		},
	)
)

// TrackCacheEntries makes CacheEntries report the result of fn.
func TrackCacheEntries(fn func() int) {
	cacheLen.Store(&fn)
}
