package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestExposition(t *testing.T) {
	LLMCalls.WithLabelValues(OutcomeSuccess).Inc()
	CacheLookups.WithLabelValues("memory", CacheResult(true)).Inc()
	TotalSpend.Set(1234.5)

	body := scrape(t)
	for _, want := range []string{
		`spendlens_llm_calls_total{outcome="success"}`,
		`spendlens_cache_lookups_total{result="hit",tier="memory"}`,
		"spendlens_total_spend_dollars 1234.5",
		"spendlens_analysis_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestCacheResult(t *testing.T) {
	if CacheResult(true) != "hit" || CacheResult(false) != "miss" {
		t.Error("unexpected cache result labels")
	}
}
