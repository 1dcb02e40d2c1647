// Package metrics holds the Prometheus collectors of the service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "learning_path"

var (
	// HTTPRequests counts API requests.
	// Labels: method, route (chi route pattern), status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPDuration measures request latency.
	// Labels: method, route
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// PathsGenerated counts generated paths.
	// Labels: source (catalog, enhanced, cache)
	PathsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "paths",
		Name:      "generated_total",
		Help:      "Total learning paths generated",
	}, []string{"source"})

	// GoalMisses counts free-text goals that matched no catalog entry
	GoalMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "paths",
		Name:      "goal_misses_total",
		Help:      "Total goal texts without a catalog match",
	})

	// ProgressEvents counts recorded progress events.
	// Labels: type
	ProgressEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "progress",
		Name:      "events_total",
		Help:      "Total progress events recorded",
	}, []string{"type"})

	// StaleProgressPruned counts progress records removed by the pruner
	StaleProgressPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "progress",
		Name:      "stale_pruned_total",
		Help:      "Total stale progress records removed",
	})

	// EnhancerFallbacks counts enhancer calls that fell back to the catalog path.
	// Labels: reason (error, invalid, open)
	EnhancerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enhancer",
		Name:      "fallbacks_total",
		Help:      "Total enhancer fallbacks to the deterministic path",
	}, []string{"reason"})

	// CacheLookups counts path cache lookups.
	// Labels: result (hit, miss, error)
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Total path cache lookups",
	}, []string{"result"})

	// FeedSubscribers tracks open progress stream subscriptions
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "subscribers",
		Help:      "Open progress stream subscriptions",
	})
)
