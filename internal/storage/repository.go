package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// TimeLayout is how timestamps are stored. Fixed width UTC keeps string
// comparison in SQL equal to time ordering.
const TimeLayout = "2006-01-02T15:04:05.000Z"

var ErrNotFound = errors.New("record not found")

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// SQLiteRepository persists cost-control records.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; analysis runs categorize concurrently.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Cost control database ready", "path", dbPath)
	return NewWithDB(db), nil
}

// NewWithDB wraps an already open, migrated database.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, queries: New(db)}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetAnalysis returns the record stored under hash, or ErrNotFound.
func (r *SQLiteRepository) GetAnalysis(ctx context.Context, hash string) (AnalysisRecord, error) {
	rec, err := r.queries.GetAnalysisByHash(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisRecord{}, ErrNotFound
	}
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("get analysis: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) TouchAnalysis(ctx context.Context, hash string, at time.Time) error {
	if err := r.queries.TouchAnalysis(ctx, TouchAnalysisParams{
		LastAccessed: FormatTime(at),
		AnalysisHash: hash,
	}); err != nil {
		return fmt.Errorf("touch analysis: %w", err)
	}
	return nil
}

// SaveAnalysis inserts or replaces the record with the same id or hash.
func (r *SQLiteRepository) SaveAnalysis(ctx context.Context, rec AnalysisRecord) error {
	if err := r.queries.UpsertAnalysis(ctx, UpsertAnalysisParams(rec)); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RecordAPICall(ctx context.Context, call ApiCall) error {
	if err := r.queries.InsertAPICall(ctx, InsertAPICallParams{
		Timestamp:    call.Timestamp,
		Vendor:       call.Vendor,
		TokensUsed:   call.TokensUsed,
		CostUsd:      call.CostUsd,
		CacheHit:     call.CacheHit,
		AnalysisHash: call.AnalysisHash,
	}); err != nil {
		return fmt.Errorf("record api call: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) VendorBreakdown(ctx context.Context) ([]GetVendorBreakdownRow, error) {
	rows, err := r.queries.GetVendorBreakdown(ctx)
	if err != nil {
		return nil, fmt.Errorf("get vendor breakdown: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) DailyTrends(ctx context.Context, since time.Time) ([]GetDailyTrendsRow, error) {
	rows, err := r.queries.GetDailyTrends(ctx, FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("get daily trends: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) APICallTotals(ctx context.Context) (GetAPICallTotalsRow, error) {
	row, err := r.queries.GetAPICallTotals(ctx)
	if err != nil {
		return GetAPICallTotalsRow{}, fmt.Errorf("get api call totals: %w", err)
	}
	return row, nil
}

func (r *SQLiteRepository) ListAnalyses(ctx context.Context) ([]AnalysisRecord, error) {
	recs, err := r.queries.ListAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return recs, nil
}

// DeleteAnalysesBefore removes records created before cutoff and reports how many.
func (r *SQLiteRepository) DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.queries.DeleteAnalysesBefore(ctx, FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete old analyses: %w", err)
	}
	return n, nil
}

// VendorsWithAnalysesOver lists vendors with more than n stored analyses.
func (r *SQLiteRepository) VendorsWithAnalysesOver(ctx context.Context, n int) ([]CountAnalysesByVendorRow, error) {
	rows, err := r.queries.CountAnalysesByVendor(ctx, int64(n))
	if err != nil {
		return nil, fmt.Errorf("count analyses by vendor: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, m CostMetric) error {
	if err := r.queries.InsertCostMetric(ctx, InsertCostMetricParams{
		SnapshotAt:     m.SnapshotAt,
		TotalApiCalls:  m.TotalApiCalls,
		TotalTokens:    m.TotalTokens,
		TotalCostUsd:   m.TotalCostUsd,
		CacheHits:      m.CacheHits,
		CacheMisses:    m.CacheMisses,
		CostSavingsUsd: m.CostSavingsUsd,
	}); err != nil {
		return fmt.Errorf("save cost snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent metrics snapshot, or ErrNotFound.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (CostMetric, error) {
	m, err := r.queries.GetLatestCostMetric(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return CostMetric{}, ErrNotFound
	}
	if err != nil {
		return CostMetric{}, fmt.Errorf("get latest cost snapshot: %w", err)
	}
	return m, nil
}
