package costcontrol

import (
	"context"
	"fmt"
	"time"
)

// DefaultTrendDays is the trend window used when none is given.
const DefaultTrendDays = 30

type VendorCost struct {
	Vendor       string  `json:"vendor"`
	APICalls     int64   `json:"api_calls"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	CacheHits    int64   `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

type DailyCost struct {
	Date         string  `json:"date"`
	APICalls     int64   `json:"api_calls"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	CacheHits    int64   `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// Summary is the cost dashboard: running totals plus per-vendor and per-day
// views of the recorded API calls.
type Summary struct {
	Counters
	CacheHitRate   float64      `json:"cache_hit_rate"`
	CostSavingsUSD float64      `json:"cost_savings_usd"`
	NetCostUSD     float64      `json:"net_cost_usd"`
	Vendors        []VendorCost `json:"vendors"`
	Trends         []DailyCost  `json:"trends"`
	PeriodDays     int          `json:"period_days"`
}

func rate(hits, calls int64) float64 {
	if calls < 1 {
		calls = 1
	}
	return float64(hits) / float64(calls)
}

// Summary builds the dashboard over the last days of API calls.
func (m *Manager) Summary(ctx context.Context, days int) (Summary, error) {
	if days <= 0 {
		days = DefaultTrendDays
	}
	c := m.Counters()
	s := Summary{
		Counters:       c,
		CacheHitRate:   c.HitRate(),
		CostSavingsUSD: c.Savings(),
		NetCostUSD:     c.CostUSD - c.Savings(),
		Vendors:        []VendorCost{},
		Trends:         []DailyCost{},
		PeriodDays:     days,
	}

	vendors, err := m.repo.VendorBreakdown(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("build cost summary: %w", err)
	}
	for _, v := range vendors {
		s.Vendors = append(s.Vendors, VendorCost{
			Vendor:       v.Vendor,
			APICalls:     v.ApiCalls,
			TotalTokens:  v.TotalTokens,
			TotalCostUSD: v.TotalCost,
			CacheHits:    v.CacheHits,
			CacheHitRate: rate(v.CacheHits, v.ApiCalls),
		})
	}

	since := m.now().Add(-time.Duration(days) * 24 * time.Hour)
	trends, err := m.repo.DailyTrends(ctx, since)
	if err != nil {
		return Summary{}, fmt.Errorf("build cost summary: %w", err)
	}
	for _, d := range trends {
		s.Trends = append(s.Trends, DailyCost{
			Date:         d.Day,
			APICalls:     d.ApiCalls,
			TotalTokens:  d.TotalTokens,
			TotalCostUSD: d.TotalCost,
			CacheHits:    d.CacheHits,
			CacheHitRate: rate(d.CacheHits, d.ApiCalls),
		})
	}
	return s, nil
}

// Recommendations lists cost optimizations suggested by the summary and the
// stored analysis volume.
func (m *Manager) Recommendations(ctx context.Context, s Summary) ([]string, error) {
	var recs []string
	if s.CacheHitRate < 0.5 {
		recs = append(recs, "Low cache hit rate detected. Consider running analysis on similar invoices to improve caching.")
	}

	heavy, err := m.repo.VendorsWithAnalysesOver(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("build recommendations: %w", err)
	}
	for _, v := range heavy {
		recs = append(recs, fmt.Sprintf("High analysis count for %s (%d analyses). Consider batch processing.", v.Vendor, v.Analyses))
	}

	if s.CostUSD > 100 {
		recs = append(recs, "Total API costs exceed $100. Consider implementing stricter caching policies.")
	}
	return recs, nil
}
