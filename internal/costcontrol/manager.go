// Package costcontrol keeps LLM categorization from being paid for twice. It
// fronts the SQLite analysis store with a hot cache tier and tracks calls,
// tokens, cost and cache efficiency.
package costcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spendlens/internal/cache"
	"spendlens/internal/core"
	logger "spendlens/internal/log"
	"spendlens/internal/metrics"
	"spendlens/internal/storage"
)

// EstimatedCostPerCall values one avoided LLM call when estimating savings.
const EstimatedCostPerCall = 0.15

// ErrNotFound is returned by Get when neither tier knows the invoice.
var ErrNotFound = errors.New("analysis not cached")

// Repository is the slice of the SQLite store the manager needs.
type Repository interface {
	GetAnalysis(ctx context.Context, hash string) (storage.AnalysisRecord, error)
	TouchAnalysis(ctx context.Context, hash string, at time.Time) error
	SaveAnalysis(ctx context.Context, rec storage.AnalysisRecord) error
	RecordAPICall(ctx context.Context, call storage.ApiCall) error
	VendorBreakdown(ctx context.Context) ([]storage.GetVendorBreakdownRow, error)
	DailyTrends(ctx context.Context, since time.Time) ([]storage.GetDailyTrendsRow, error)
	ListAnalyses(ctx context.Context) ([]storage.AnalysisRecord, error)
	DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	VendorsWithAnalysesOver(ctx context.Context, n int) ([]storage.CountAnalysesByVendorRow, error)
	SaveSnapshot(ctx context.Context, m storage.CostMetric) error
	LatestSnapshot(ctx context.Context) (storage.CostMetric, error)
}

// Counters are the running totals persisted by Snapshot.
type Counters struct {
	APICalls    int64     `json:"total_api_calls"`
	Tokens      int64     `json:"total_tokens_used"`
	CostUSD     float64   `json:"total_cost_usd"`
	CacheHits   int64     `json:"cache_hits"`
	CacheMisses int64     `json:"cache_misses"`
	LastUpdated time.Time `json:"last_updated"`
}

// HitRate is hits over lookups, with an empty history counting as zero.
func (c Counters) HitRate() float64 {
	total := c.CacheHits + c.CacheMisses
	if total < 1 {
		total = 1
	}
	return float64(c.CacheHits) / float64(total)
}

// Savings estimates what cache hits avoided spending.
func (c Counters) Savings() float64 {
	return float64(c.CacheHits) * EstimatedCostPerCall
}

type Manager struct {
	repo Repository
	hot  cache.Store
	now  func() time.Time

	mu       sync.Mutex
	counters Counters
}

// NewManager resumes the counters from the latest snapshot. hot may be nil.
func NewManager(ctx context.Context, repo Repository, hot cache.Store) (*Manager, error) {
	m := &Manager{repo: repo, hot: hot, now: time.Now}

	snap, err := repo.LatestSnapshot(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.counters.LastUpdated = m.now().UTC()
	case err != nil:
		return nil, fmt.Errorf("load cost counters: %w", err)
	default:
		m.counters = Counters{
			APICalls:    snap.TotalApiCalls,
			Tokens:      snap.TotalTokens,
			CostUSD:     snap.TotalCostUsd,
			CacheHits:   snap.CacheHits,
			CacheMisses: snap.CacheMisses,
		}
		if t, perr := storage.ParseTime(snap.SnapshotAt); perr == nil {
			m.counters.LastUpdated = t
		}
	}

	slog.InfoContext(ctx, "Cost control manager initialized",
		logger.FieldComponent, logger.ComponentCostControl,
		"api_calls", m.counters.APICalls,
		"cache_hits", m.counters.CacheHits)
	return m, nil
}

// Counters returns a copy of the running totals.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

func (m *Manager) hotKey(hash string) string {
	return cache.EntryKey("analysis", hash)
}

// Get returns the stored analysis JSON for inv, or ErrNotFound.
func (m *Manager) Get(ctx context.Context, inv core.Invoice) (json.RawMessage, error) {
	hash := Hash(inv)

	if data, ok := m.lookupHot(ctx, hash); ok {
		m.recordHit(ctx, inv, hash)
		return data, nil
	}

	rec, err := m.repo.GetAnalysis(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.CacheLookups.WithLabelValues("sqlite", metrics.CacheResult(false)).Inc()
		m.mu.Lock()
		m.counters.CacheMisses++
		m.counters.LastUpdated = m.now().UTC()
		m.mu.Unlock()
		slog.DebugContext(ctx, "Cache miss", logger.FieldComponent, logger.ComponentCostControl, "analysis_hash", hash[:16])
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup analysis: %w", err)
	}
	metrics.CacheLookups.WithLabelValues("sqlite", metrics.CacheResult(true)).Inc()

	data := json.RawMessage(rec.AnalysisData)
	m.warmHot(ctx, hash, data)
	m.recordHit(ctx, inv, hash)
	return data, nil
}

func (m *Manager) lookupHot(ctx context.Context, hash string) (json.RawMessage, bool) {
	if m.hot == nil {
		return nil, false
	}
	data, err := m.hot.Get(ctx, m.hotKey(hash))
	hit := err == nil
	metrics.CacheLookups.WithLabelValues(m.hot.Name(), metrics.CacheResult(hit)).Inc()
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.WarnContext(ctx, "Hot cache lookup failed", logger.FieldComponent, logger.ComponentCostControl, "cache_tier", m.hot.Name(), logger.FieldError, err)
	}
	return data, hit
}

func (m *Manager) warmHot(ctx context.Context, hash string, data []byte) {
	if m.hot == nil {
		return
	}
	if err := m.hot.Set(ctx, m.hotKey(hash), data); err != nil {
		slog.WarnContext(ctx, "Could not write hot cache", logger.FieldComponent, logger.ComponentCostControl, "cache_tier", m.hot.Name(), logger.FieldError, err)
	}
}

// recordHit updates counters and bookkeeping. Bookkeeping failures are logged,
// the cached value is still served.
func (m *Manager) recordHit(ctx context.Context, inv core.Invoice, hash string) {
	now := m.now().UTC()
	m.mu.Lock()
	m.counters.CacheHits++
	m.counters.LastUpdated = now
	m.mu.Unlock()

	metrics.LLMCalls.WithLabelValues(metrics.OutcomeCached).Inc()

	if err := m.repo.TouchAnalysis(ctx, hash, now); err != nil {
		slog.WarnContext(ctx, "Could not touch analysis", logger.FieldComponent, logger.ComponentCostControl, logger.FieldError, err)
	}
	if err := m.repo.RecordAPICall(ctx, storage.ApiCall{
		Timestamp:    storage.FormatTime(now),
		Vendor:       vendorOf(inv),
		CacheHit:     true,
		AnalysisHash: hash,
	}); err != nil {
		slog.WarnContext(ctx, "Could not record cache hit", logger.FieldComponent, logger.ComponentCostControl, logger.FieldError, err)
	}
	slog.InfoContext(ctx, "Cache hit", logger.FieldComponent, logger.ComponentCostControl, "analysis_hash", hash[:16], "vendor", inv.Vendor)
}

func vendorOf(inv core.Invoice) string {
	if inv.Vendor == "" {
		return "Unknown"
	}
	return inv.Vendor
}

// Store persists a freshly computed analysis and accounts for its cost.
func (m *Manager) Store(ctx context.Context, inv core.Invoice, data any, tokens int, costUSD float64) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	hash := Hash(inv)
	now := storage.FormatTime(m.now())

	rec := storage.AnalysisRecord{
		ID:           "analysis_" + hash[:16],
		Vendor:       vendorOf(inv),
		InvoiceDate:  inv.InvoiceDate,
		TotalAmount:  inv.Total.Dollars(),
		AnalysisHash: hash,
		ApiCostUsd:   costUSD,
		TokensUsed:   int64(tokens),
		CreatedAt:    now,
		LastAccessed: now,
		AnalysisData: string(raw),
	}
	if err := m.repo.SaveAnalysis(ctx, rec); err != nil {
		return err
	}

	m.mu.Lock()
	m.counters.APICalls++
	m.counters.Tokens += int64(tokens)
	m.counters.CostUSD += costUSD
	m.counters.LastUpdated = m.now().UTC()
	m.mu.Unlock()
	metrics.LLMCostUSD.Add(costUSD)

	if err := m.repo.RecordAPICall(ctx, storage.ApiCall{
		Timestamp:    now,
		Vendor:       rec.Vendor,
		TokensUsed:   int64(tokens),
		CostUsd:      costUSD,
		AnalysisHash: hash,
	}); err != nil {
		return err
	}

	m.warmHot(ctx, hash, raw)
	slog.InfoContext(ctx, "Stored analysis result",
		logger.FieldComponent, logger.ComponentCostControl,
		"vendor", rec.Vendor,
		"tokens", tokens,
		"cost_usd", costUSD)
	return nil
}

// Computed is what a GetOrCompute callback produced. NoStore keeps a result
// (typically a fallback) out of both tiers.
type Computed struct {
	Value   any
	Tokens  int
	CostUSD float64
	NoStore bool
}

// GetOrCompute returns the cached analysis for inv or runs fn and stores its
// result. The bool reports a cache hit. Lookup and store failures are logged
// and do not fail the call.
func (m *Manager) GetOrCompute(ctx context.Context, inv core.Invoice, fn func(context.Context) (Computed, error)) (json.RawMessage, bool, error) {
	data, err := m.Get(ctx, inv)
	if err == nil {
		return data, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		slog.WarnContext(ctx, "Cost control lookup failed, computing", logger.FieldComponent, logger.ComponentCostControl, logger.FieldError, err)
	}

	out, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, err := json.Marshal(out.Value)
	if err != nil {
		return nil, false, fmt.Errorf("encode analysis: %w", err)
	}
	if !out.NoStore {
		if err := m.Store(ctx, inv, out.Value, out.Tokens, out.CostUSD); err != nil {
			slog.WarnContext(ctx, "Could not store analysis", logger.FieldComponent, logger.ComponentCostControl, "vendor", inv.Vendor, logger.FieldError, err)
		}
	}
	return raw, false, nil
}

// Snapshot persists the current counters.
func (m *Manager) Snapshot(ctx context.Context) error {
	c := m.Counters()
	return m.repo.SaveSnapshot(ctx, storage.CostMetric{
		SnapshotAt:     storage.FormatTime(m.now()),
		TotalApiCalls:  c.APICalls,
		TotalTokens:    c.Tokens,
		TotalCostUsd:   c.CostUSD,
		CacheHits:      c.CacheHits,
		CacheMisses:    c.CacheMisses,
		CostSavingsUsd: c.Savings(),
	})
}

// DefaultRetentionDays applies when Cleanup is given no positive age.
const DefaultRetentionDays = 365

// Cleanup deletes analyses created more than days ago and drops the hot tier
// so it cannot serve them.
func (m *Manager) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := m.now().AddDate(0, 0, -days)
	n, err := m.repo.DeleteAnalysesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 && m.hot != nil {
		if err := m.hot.Clear(ctx); err != nil {
			slog.WarnContext(ctx, "Could not clear hot cache after cleanup", logger.FieldComponent, logger.ComponentCostControl, logger.FieldError, err)
		}
	}
	slog.InfoContext(ctx, "Cleaned up old analyses", logger.FieldComponent, logger.ComponentCostControl, "count", n, "days", days)
	return n, nil
}
