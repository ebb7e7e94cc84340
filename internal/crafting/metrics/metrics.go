// Package metrics exposes Prometheus instrumentation for the crafting engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crafting"

const (
	requestsName = "requests_total"
	requestsHelp = "Engine operations by operation and outcome"

	durationName = "operation_duration_seconds"
	durationHelp = "Engine operation latency"

	craftedName = "items_crafted_total"
	craftedHelp = "Result items produced by applied and dry-run crafts"

	mismatchName = "simulation_mismatch_total"
	mismatchHelp = "Recursive crafts aborted because the live inventory diverged from the dry run"

	cacheName = "cache_requests_total"
	cacheHelp = "Result cache lookups by cache and result"

	refreshName = "refresh_total"
	refreshHelp = "Availability refresh passes by outcome"

	availableName = "available_recipes"
	availableHelp = "Recipes currently available per storage"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector holds the engine's metrics.
type Collector struct {
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Crafted   prometheus.Counter
	Mismatch  prometheus.Counter
	Cache     *prometheus.CounterVec
	Refresh   *prometheus.CounterVec
	Available *prometheus.GaugeVec
}

// New registers the engine metrics with reg. A nil reg creates a private
// registry, which keeps tests and embedded engines from colliding.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Collector{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: requestsName, Help: requestsHelp,
		}, []string{"operation", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: durationName, Help: durationHelp,
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		Crafted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: craftedName, Help: craftedHelp,
		}),
		Mismatch: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: mismatchName, Help: mismatchHelp,
		}),
		Cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: cacheName, Help: cacheHelp,
		}, []string{"cache", "result"}),
		Refresh: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: refreshName, Help: refreshHelp,
		}, []string{"outcome"}),
		Available: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: availableName, Help: availableHelp,
		}, []string{"storage"}),
	}
}

// Observe records one finished operation.
func (c *Collector) Observe(operation string, seconds float64, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.Requests.WithLabelValues(operation, outcome).Inc()
	c.Duration.WithLabelValues(operation).Observe(seconds)
}

// CacheLookup records a cache hit or miss.
func (c *Collector) CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.Cache.WithLabelValues(cache, result).Inc()
}
