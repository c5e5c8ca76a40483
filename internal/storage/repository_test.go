package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "cost.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func record(id, vendor, hash string, created time.Time) AnalysisRecord {
	return AnalysisRecord{
		ID:           id,
		Vendor:       vendor,
		InvoiceDate:  "2024-01-01",
		TotalAmount:  100.5,
		AnalysisHash: hash,
		ApiCostUsd:   0.02,
		TokensUsed:   150,
		CreatedAt:    FormatTime(created),
		LastAccessed: FormatTime(created),
		AnalysisData: `{"primary_category":"it_services"}`,
	}
}

func TestRepository_AnalysisLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := repo.GetAnalysis(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.SaveAnalysis(ctx, record("a1", "Synoptek", "h1", now)); err != nil {
		t.Fatalf("SaveAnalysis() error = %v", err)
	}
	// Same hash under a new id replaces the row.
	replaced := record("a2", "Synoptek", "h1", now)
	replaced.TokensUsed = 300
	if err := repo.SaveAnalysis(ctx, replaced); err != nil {
		t.Fatalf("SaveAnalysis() replace error = %v", err)
	}

	got, err := repo.GetAnalysis(ctx, "h1")
	if err != nil {
		t.Fatalf("GetAnalysis() error = %v", err)
	}
	if got.ID != "a2" || got.TokensUsed != 300 {
		t.Errorf("unexpected record %+v", got)
	}

	later := now.Add(time.Hour)
	if err := repo.TouchAnalysis(ctx, "h1", later); err != nil {
		t.Fatalf("TouchAnalysis() error = %v", err)
	}
	got, _ = repo.GetAnalysis(ctx, "h1")
	if got.LastAccessed != FormatTime(later) {
		t.Errorf("LastAccessed = %s, want %s", got.LastAccessed, FormatTime(later))
	}

	all, err := repo.ListAnalyses(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAnalyses() = %d records, err %v", len(all), err)
	}
}

func TestRepository_DeleteAnalysesBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = repo.SaveAnalysis(ctx, record("old", "A", "h-old", now.AddDate(-2, 0, 0)))
	_ = repo.SaveAnalysis(ctx, record("new", "A", "h-new", now))

	n, err := repo.DeleteAnalysesBefore(ctx, now.AddDate(-1, 0, 0))
	if err != nil {
		t.Fatalf("DeleteAnalysesBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := repo.GetAnalysis(ctx, "h-old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old record still present: %v", err)
	}
}

func TestRepository_APICallAggregates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	calls := []ApiCall{
		{Timestamp: FormatTime(now.AddDate(0, 0, -40)), Vendor: "Old", TokensUsed: 10, CostUsd: 5},
		{Timestamp: FormatTime(now.AddDate(0, 0, -1)), Vendor: "Synoptek", TokensUsed: 100, CostUsd: 0.5, AnalysisHash: "h1"},
		{Timestamp: FormatTime(now.AddDate(0, 0, -1)), Vendor: "Synoptek", CacheHit: true, AnalysisHash: "h1"},
		{Timestamp: FormatTime(now), Vendor: "Adobe", TokensUsed: 50, CostUsd: 0.25, AnalysisHash: "h2"},
	}
	for _, c := range calls {
		if err := repo.RecordAPICall(ctx, c); err != nil {
			t.Fatalf("RecordAPICall() error = %v", err)
		}
	}

	vendors, err := repo.VendorBreakdown(ctx)
	if err != nil {
		t.Fatalf("VendorBreakdown() error = %v", err)
	}
	if len(vendors) != 3 || vendors[0].Vendor != "Old" {
		t.Fatalf("unexpected breakdown order: %+v", vendors)
	}
	for _, v := range vendors {
		if v.Vendor == "Synoptek" && (v.ApiCalls != 2 || v.CacheHits != 1 || v.TotalTokens != 100) {
			t.Errorf("Synoptek row = %+v", v)
		}
	}

	trends, err := repo.DailyTrends(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DailyTrends() error = %v", err)
	}
	var trendCalls int64
	for _, d := range trends {
		trendCalls += d.ApiCalls
		if len(d.Day) != len("2006-01-02") {
			t.Errorf("unexpected day format %q", d.Day)
		}
	}
	if trendCalls != 3 {
		t.Errorf("trend calls = %d, want 3", trendCalls)
	}

	totals, err := repo.APICallTotals(ctx)
	if err != nil {
		t.Fatalf("APICallTotals() error = %v", err)
	}
	if totals.ApiCalls != 4 || totals.CacheHits != 1 || totals.TotalTokens != 160 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestRepository_Snapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for i := int64(1); i <= 2; i++ {
		if err := repo.SaveSnapshot(ctx, CostMetric{
			SnapshotAt:    FormatTime(time.Now()),
			TotalApiCalls: i,
			CacheHits:     i * 10,
		}); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
	}
	m, err := repo.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if m.TotalApiCalls != 2 || m.CacheHits != 20 {
		t.Errorf("latest snapshot = %+v", m)
	}
}

func TestRepository_VendorsWithAnalysesOver(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 3; i++ {
		_ = repo.SaveAnalysis(ctx, record(string(rune('a'+i)), "Busy", string(rune('h'+i)), now))
	}
	_ = repo.SaveAnalysis(ctx, record("z", "Quiet", "hz", now))

	rows, err := repo.VendorsWithAnalysesOver(ctx, 2)
	if err != nil {
		t.Fatalf("VendorsWithAnalysesOver() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Vendor != "Busy" || rows[0].Analyses != 3 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRepository_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewWithDB(db)
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta("FROM analysis_records")).WillReturnError(boom)
	if _, err := repo.GetAnalysis(ctx, "h"); !errors.Is(err, boom) {
		t.Errorf("GetAnalysis() error = %v, want wrapped boom", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_calls")).WillReturnError(boom)
	if err := repo.RecordAPICall(ctx, ApiCall{}); !errors.Is(err, boom) {
		t.Errorf("RecordAPICall() error = %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM analysis_records")).
		WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := repo.DeleteAnalysesBefore(ctx, time.Now())
	if err != nil || n != 7 {
		t.Errorf("DeleteAnalysesBefore() = %d, %v", n, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_calls")).
		WillReturnRows(sqlmock.NewRows([]string{"vendor", "api_calls", "total_tokens", "total_cost", "cache_hits"}).
			AddRow("A", 1, 2, 0.5, 0).
			RowError(0, boom))
	if _, err := repo.VendorBreakdown(ctx); err == nil {
		t.Error("expected row error from VendorBreakdown")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("X", 2*3600)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6e6, loc)
	s := FormatTime(ts)
	if s != "2025-01-02T01:04:05.006Z" {
		t.Errorf("FormatTime() = %s", s)
	}
	back, err := ParseTime(s)
	if err != nil || !back.Equal(ts) {
		t.Errorf("ParseTime() = %v, %v", back, err)
	}
}

func TestRepository_JournalModeWAL(t *testing.T) {
	repo := newTestRepo(t)

	var mode string
	if err := repo.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
