// Package metrics exposes Prometheus collectors for the ingest core.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch modes and outcomes used as label values.
const (
	ModeAsync = "async"
	ModeSync  = "sync"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	dispatchesTotal     *prometheus.CounterVec
	sourcesCreatedTotal prometheus.Counter
	sourcesDeletedTotal prometheus.Counter
	ingestFailuresTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		dispatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_dispatches_total",
				Help: "Total dispatched units, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		sourcesCreatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_sources_created_total",
				Help: "Total sources created through the registry.",
			},
		)

		sourcesDeletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_sources_deleted_total",
				Help: "Total sources removed, including their cascaded dependents.",
			},
		)

		ingestFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_ingest_failures_total",
				Help: "Total envelopes the consumer loop failed to ingest.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDispatch increments the dispatch counter. A no-op before Init
// so library code can call it unconditionally.
func ObserveDispatch(mode, outcome string) {
	if dispatchesTotal == nil {
		return
	}
	dispatchesTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveSourceCreated increments the created-sources counter.
func ObserveSourceCreated() {
	if sourcesCreatedTotal == nil {
		return
	}
	sourcesCreatedTotal.Inc()
}

// ObserveSourceDeleted increments the deleted-sources counter.
func ObserveSourceDeleted() {
	if sourcesDeletedTotal == nil {
		return
	}
	sourcesDeletedTotal.Inc()
}

// ObserveIngestFailure increments the consumer failure counter.
func ObserveIngestFailure() {
	if ingestFailuresTotal == nil {
		return
	}
	ingestFailuresTotal.Inc()
}
