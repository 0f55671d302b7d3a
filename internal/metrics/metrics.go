package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "researchgraph_ask_duration_seconds",
		Help:    "End-to-end ask processing duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	AskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "researchgraph_ask_total",
		Help: "Total ask operations by terminal outcome",
	}, []string{"outcome"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "researchgraph_answer_cache_hits_total",
		Help: "Answers served from the persistent answer cache",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "researchgraph_answer_cache_misses_total",
		Help: "Questions that required a generation call",
	})

	LLMTokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "researchgraph_llm_tokens_used_total",
		Help: "Tokens consumed by generation calls",
	}, []string{"model"})

	PassagesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "researchgraph_passages_ingested_total",
		Help: "Passages written by ingestion workflows",
	})
)
