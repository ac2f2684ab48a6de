// Package metrics exposes the engine's Prometheus counters and histograms:
// workflow and block lifecycle counts, enrichment-call latency, and the
// registry the HTTP API serves at its scrape endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram the engine, the HTTP API and the
// enrichment client update during a workflow run.
type Metrics struct {
	WorkflowsCreated  prometheus.Counter
	WorkflowsComplete prometheus.Counter
	WorkflowsFailed   prometheus.Counter
	WorkflowsPaused   prometheus.Counter

	BlocksExecuted prometheus.Counter
	BlockErrors    *prometheus.CounterVec
	BlockDuration  *prometheus.HistogramVec

	EnrichmentCalls   *prometheus.CounterVec
	EnrichmentLatency prometheus.Histogram
}

// New registers and returns a Metrics bound to reg. Pass a fresh
// prometheus.NewRegistry() for isolation in tests, or a registry backed by
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WorkflowsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_workflows_created_total",
			Help: "Total number of workflows created.",
		}),
		WorkflowsComplete: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_workflows_completed_total",
			Help: "Total number of workflows that reached COMPLETED.",
		}),
		WorkflowsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_workflows_failed_total",
			Help: "Total number of workflows that reached FAILED.",
		}),
		WorkflowsPaused: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_workflows_paused_total",
			Help: "Total number of times a workflow transitioned to PAUSED.",
		}),
		BlocksExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadpipe_blocks_executed_total",
			Help: "Total number of block executions started.",
		}),
		BlockErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadpipe_block_errors_total",
			Help: "Total block executions that returned an error, by block and error kind.",
		}, []string{"block_kind", "error_kind"}),
		BlockDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leadpipe_block_duration_seconds",
			Help:    "Time spent inside a single block Execute call.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"block_kind"}),
		EnrichmentCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadpipe_enrichment_calls_total",
			Help: "Total enrichment client calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		EnrichmentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadpipe_enrichment_call_duration_seconds",
			Help:    "Latency of a single enrichment client call, including retries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
