package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"spendlens/internal/benchmark"
	"spendlens/internal/cache"
	"spendlens/internal/core"
	"spendlens/internal/costcontrol"
	"spendlens/internal/llm"
	"spendlens/internal/storage"
)

type countingCompleter struct {
	calls atomic.Int32
	text  string
	err   error
}

func (c *countingCompleter) Complete(context.Context, string) (llm.Completion, error) {
	c.calls.Add(1)
	return llm.Completion{Text: c.text, Usage: llm.Usage{InputTokens: 150, OutputTokens: 50}}, c.err
}

func newCostManager(t *testing.T) *costcontrol.Manager {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cost_control.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	m, err := costcontrol.NewManager(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestCostControlledCategorizer_CachesAnswers(t *testing.T) {
	ctx := context.Background()
	comp := &countingCompleter{text: `{"primary_category":"cloud_services","subcategory":"infrastructure","service_type":"subscription"}`}
	c := NewCostControlledCategorizer(newCostManager(t), llm.NewCategorizer(comp, 0.15))
	inv := invoice("a", "AWS", "RPAG", "2024-01-01", item("EC2 compute", 900))

	first, err := c.Categorize(ctx, inv)
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if first.Cached || first.PrimaryCategory != "cloud_services" || first.Tokens != 200 {
		t.Errorf("first = %+v", first)
	}

	second, err := c.Categorize(ctx, inv)
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if !second.Cached || second.Subcategory != "infrastructure" || second.Tokens != 0 {
		t.Errorf("second = %+v", second)
	}
	if n := comp.calls.Load(); n != 1 {
		t.Errorf("completer calls = %d, want 1", n)
	}
}

func TestCostControlledCategorizer_FallbackNotStored(t *testing.T) {
	ctx := context.Background()
	comp := &countingCompleter{err: errors.New("unavailable")}
	costs := newCostManager(t)
	c := NewCostControlledCategorizer(costs, llm.NewCategorizer(comp, 0.15))
	inv := invoice("a", "Harman", "Flexpath", "2024-01-01", item("Consulting hours", 1200))

	for i := 0; i < 2; i++ {
		got, err := c.Categorize(ctx, inv)
		if err != nil {
			t.Fatalf("Categorize() error = %v", err)
		}
		if !got.Fallback || got.Cached {
			t.Errorf("call %d = %+v", i, got)
		}
	}
	if n := comp.calls.Load(); n != 2 {
		t.Errorf("completer calls = %d, want 2", n)
	}
	if costs.Counters().APICalls != 0 {
		t.Errorf("fallback answers should not be recorded as API calls")
	}
}

func TestCostControlledCategorizer_WithoutManager(t *testing.T) {
	comp := &countingCompleter{text: `{"primary_category":"security_software","subcategory":"compliance"}`}
	c := NewCostControlledCategorizer(nil, llm.NewCategorizer(comp, 0.15))
	inv := invoice("a", "Proofpoint", "RPAG", "2024-01-01", item("Email compliance", 80))

	for i := 0; i < 2; i++ {
		got, err := c.Categorize(context.Background(), inv)
		if err != nil {
			t.Fatal(err)
		}
		if got.Cached || got.PrimaryCategory != "security_software" {
			t.Errorf("call %d = %+v", i, got)
		}
	}
	if n := comp.calls.Load(); n != 2 {
		t.Errorf("completer calls = %d, want 2", n)
	}
}

func TestCostControlledCategorizer_UnreadableCacheEntry(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cost_control.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	hot := cache.NewMemoryStore(1<<20, time.Hour, cache.PolicyLRU)
	costs, err := costcontrol.NewManager(ctx, repo, hot)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	inv := invoice("a", "AWS", "RPAG", "2024-01-01", item("EC2 compute", 900))
	key := cache.EntryKey("analysis", costcontrol.Hash(inv))
	if err := hot.Set(ctx, key, []byte(`{"primary_category":"cloud_services","hidden_costs":"none"}`)); err != nil {
		t.Fatal(err)
	}

	comp := &countingCompleter{text: `{"primary_category":"cloud_services","subcategory":"storage","service_type":"subscription"}`}
	p := NewPipeline(benchmark.Default(), NewCostControlledCategorizer(costs, llm.NewCategorizer(comp, 0.15)))
	res, err := p.Run(ctx, []core.Invoice{inv}, Options{UseLLM: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.LLM.Categorized != 1 || res.LLM.Fallbacks != 0 {
		t.Errorf("LLM stats = %+v", res.LLM)
	}
	if n := comp.calls.Load(); n != 1 {
		t.Errorf("completer calls = %d, want 1", n)
	}

	// The unreadable entry was replaced, so the next lookup is a clean hit.
	c := NewCostControlledCategorizer(costs, llm.NewCategorizer(comp, 0.15))
	got, err := c.Categorize(ctx, inv)
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if !got.Cached || got.Subcategory != "storage" {
		t.Errorf("after replace = %+v", got)
	}
	if n := comp.calls.Load(); n != 1 {
		t.Errorf("completer calls = %d, want 1", n)
	}
}
