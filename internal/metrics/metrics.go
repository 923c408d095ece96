// Package metrics exposes prometheus instrumentation for the pipeline
// worker and the chat engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	JobsProcessed  *prometheus.CounterVec
	ChunksEmbedded prometheus.Counter
	ChatTurns      *prometheus.CounterVec
	TickDuration   prometheus.Histogram
}

// New registers and returns the metric set. Pass prometheus.DefaultRegisterer
// in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reverb_jobs_processed_total",
			Help: "Jobs processed by the worker, by type and outcome.",
		}, []string{"type", "outcome"}),
		ChunksEmbedded: factory.NewCounter(prometheus.CounterOpts{
			Name: "reverb_chunks_embedded_total",
			Help: "Caption chunks embedded and upserted to the vector store.",
		}),
		ChatTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reverb_chat_turns_total",
			Help: "Chat turns handled by the retrieval engine, by outcome.",
		}, []string{"outcome"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reverb_worker_tick_seconds",
			Help:    "Duration of worker ticks that claimed a job.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}
