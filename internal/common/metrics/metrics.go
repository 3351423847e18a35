// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of property analysis requests",
		},
		[]string{"status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "analysis_duration_seconds",
			Help: "Duration of the full analysis pipeline in seconds",
		},
		[]string{"status"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Total number of LLM generate calls by provider and stage",
		},
		[]string{"provider", "stage", "outcome"},
	)

	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total tokens consumed by provider",
		},
		[]string{"provider"},
	)

	ContextFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_fetches_total",
			Help: "Context provider fetches by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	BudgetRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_rejections_total",
			Help: "Analyses rejected by the per-user token budget gate",
		},
	)

	RSSCacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rss_cache_events_total",
			Help: "RSS feed cache hits and misses",
		},
		[]string{"event"},
	)
)
