// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for LLMCalls.
const (
	OutcomeSuccess  = "success"
	OutcomeCached   = "cached"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendlens_llm_calls_total",
			Help: "LLM categorization calls by outcome",
		},
		[]string{"outcome"},
	)

	LLMCostUSD = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spendlens_llm_cost_usd_total",
			Help: "Estimated LLM spend in US dollars",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendlens_cache_lookups_total",
			Help: "Cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spendlens_analysis_duration_seconds",
			Help:    "Duration of a full analysis run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	TotalSpend = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spendlens_total_spend_dollars",
			Help: "Total spend of the most recent analysis",
		},
	)

	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendlens_analysis_requests_total",
			Help: "Queued analysis requests handled by the worker",
		},
		[]string{"status"},
	)
)

// CacheResult returns "hit" or "miss".
func CacheResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
