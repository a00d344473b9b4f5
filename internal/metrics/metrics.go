// Package metrics exposes prometheus instruments for the associative store, entity
// dispatch and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/memory"
	"github.com/hyperjump/holokernel/internal/signature"
)

var (
	// MemoryInsertsTotal counts store inserts.
	MemoryInsertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "holokernel_memory_inserts_total",
			Help: "Total number of associative store inserts",
		},
	)

	// MemoryOverwritesTotal counts full-store resets.
	MemoryOverwritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "holokernel_memory_overwrites_total",
			Help: "Number of times a full store abandoned its history",
		},
	)

	// MemoryAbandonedEntriesTotal counts entries dropped by resets.
	MemoryAbandonedEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "holokernel_memory_abandoned_entries_total",
			Help: "Total entries discarded by full-store resets",
		},
	)

	// MemoryLookupsTotal counts lookups by result.
	MemoryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holokernel_memory_lookups_total",
			Help: "Total associative store lookups",
		},
		[]string{"result"},
	)

	// MemoryEntries tracks the store cursor.
	MemoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "holokernel_memory_entries",
			Help: "Entries written since the last reset",
		},
	)

	// EntityTasksTotal counts processed tasks per entity.
	EntityTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holokernel_entity_tasks_total",
			Help: "Total tasks processed per entity",
		},
		[]string{"entity"},
	)

	// RateLimitRequestsTotal counts rate limiter decisions.
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holokernel_rate_limit_requests_total",
			Help: "API requests by rate limiter decision",
		},
		[]string{"status"},
	)

	// HTTPRequestDuration measures API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "holokernel_http_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
)

// Observer records store and dispatch events. It satisfies memory.Observer and
// entity.TaskObserver.
type Observer struct{}

// OnInsert implements memory.Observer.
func (Observer) OnInsert(info memory.EntryInfo) {
	MemoryInsertsTotal.Inc()
	MemoryEntries.Set(float64(info.Slot + 1))
}

// OnOverwrite implements memory.Observer.
func (Observer) OnOverwrite(abandoned int) {
	MemoryOverwritesTotal.Inc()
	MemoryAbandonedEntriesTotal.Add(float64(abandoned))
}

// OnLookup implements memory.Observer.
func (Observer) OnLookup(_ signature.Fingerprint, hit bool) {
	if hit {
		MemoryLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	MemoryLookupsTotal.WithLabelValues("miss").Inc()
}

// OnTask implements entity.TaskObserver.
func (Observer) OnTask(e *entity.Entity, _ entity.Task) {
	EntityTasksTotal.WithLabelValues(e.Kind.String()).Inc()
}
