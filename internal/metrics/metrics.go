// Package metrics holds the Prometheus collectors shared by the server and worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "focus_companion"

var (
	// CacheLookups counts response cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of AI response cache lookups",
		},
		[]string{"result"},
	)

	// CacheEvictions counts entries removed from the cache by reason (expired, capacity, cleared).
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of AI response cache entries removed",
		},
		[]string{"reason"},
	)

	// QuotaDecisions counts limiter checks by outcome (allowed, exempt, user_daily, ...).
	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Total number of usage limiter decisions",
		},
		[]string{"outcome"},
	)

	// Generations counts assistant responses by feature and source (cache, ai, fallback).
	Generations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of generated responses",
		},
		[]string{"feature", "source"},
	)

	// ProviderLatency observes AI provider call latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "AI provider request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"feature", "result"},
	)

	// UsageEventsProcessed counts ledger events handled by the worker.
	UsageEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_events_processed_total",
			Help:      "Total number of usage events written to the ledger",
		},
		[]string{"result"},
	)

	// DLQPurged counts dead-lettered usage events removed by the garbage collector.
	DLQPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_purged_total",
			Help:      "Total number of dead-lettered usage events purged",
		},
	)

	// QueueSettlements counts consumed deliveries by how they were settled (ack, requeue, drop).
	QueueSettlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_settlements_total",
			Help:      "Total number of usage queue deliveries settled",
		},
		[]string{"outcome"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
