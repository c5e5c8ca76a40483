package storage

import (
	"context"
)

const getAnalysisByHash = `
SELECT id, vendor, invoice_date, total_amount, analysis_hash, api_cost_usd, tokens_used, created_at, last_accessed, analysis_data
FROM analysis_records
WHERE analysis_hash = ?
`

func (q *Queries) GetAnalysisByHash(ctx context.Context, analysisHash string) (AnalysisRecord, error) {
	row := q.db.QueryRowContext(ctx, getAnalysisByHash, analysisHash)
	var i AnalysisRecord
	err := row.Scan(
		&i.ID,
		&i.Vendor,
		&i.InvoiceDate,
		&i.TotalAmount,
		&i.AnalysisHash,
		&i.ApiCostUsd,
		&i.TokensUsed,
		&i.CreatedAt,
		&i.LastAccessed,
		&i.AnalysisData,
	)
	return i, err
}

const touchAnalysis = `
UPDATE analysis_records SET last_accessed = ? WHERE analysis_hash = ?
`

type TouchAnalysisParams struct {
	LastAccessed string
	AnalysisHash string
}

func (q *Queries) TouchAnalysis(ctx context.Context, arg TouchAnalysisParams) error {
	_, err := q.db.ExecContext(ctx, touchAnalysis, arg.LastAccessed, arg.AnalysisHash)
	return err
}

const upsertAnalysis = `
INSERT OR REPLACE INTO analysis_records
    (id, vendor, invoice_date, total_amount, analysis_hash, api_cost_usd, tokens_used, created_at, last_accessed, analysis_data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type UpsertAnalysisParams struct {
	ID           string
	Vendor       string
	InvoiceDate  string
	TotalAmount  float64
	AnalysisHash string
	ApiCostUsd   float64
	TokensUsed   int64
	CreatedAt    string
	LastAccessed string
	AnalysisData string
}

func (q *Queries) UpsertAnalysis(ctx context.Context, arg UpsertAnalysisParams) error {
	_, err := q.db.ExecContext(ctx, upsertAnalysis,
		arg.ID,
		arg.Vendor,
		arg.InvoiceDate,
		arg.TotalAmount,
		arg.AnalysisHash,
		arg.ApiCostUsd,
		arg.TokensUsed,
		arg.CreatedAt,
		arg.LastAccessed,
		arg.AnalysisData,
	)
	return err
}

const listAnalyses = `
SELECT id, vendor, invoice_date, total_amount, analysis_hash, api_cost_usd, tokens_used, created_at, last_accessed, analysis_data
FROM analysis_records
ORDER BY created_at, id
`

func (q *Queries) ListAnalyses(ctx context.Context) ([]AnalysisRecord, error) {
	rows, err := q.db.QueryContext(ctx, listAnalyses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnalysisRecord
	for rows.Next() {
		var i AnalysisRecord
		if err := rows.Scan(
			&i.ID,
			&i.Vendor,
			&i.InvoiceDate,
			&i.TotalAmount,
			&i.AnalysisHash,
			&i.ApiCostUsd,
			&i.TokensUsed,
			&i.CreatedAt,
			&i.LastAccessed,
			&i.AnalysisData,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAnalysesBefore = `
DELETE FROM analysis_records WHERE created_at < ?
`

func (q *Queries) DeleteAnalysesBefore(ctx context.Context, createdAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAnalysesBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countAnalysesByVendor = `
SELECT vendor, COUNT(*) AS analyses
FROM analysis_records
GROUP BY vendor
HAVING COUNT(*) > ?
ORDER BY analyses DESC, vendor
`

type CountAnalysesByVendorRow struct {
	Vendor   string
	Analyses int64
}

func (q *Queries) CountAnalysesByVendor(ctx context.Context, minCount int64) ([]CountAnalysesByVendorRow, error) {
	rows, err := q.db.QueryContext(ctx, countAnalysesByVendor, minCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountAnalysesByVendorRow
	for rows.Next() {
		var i CountAnalysesByVendorRow
		if err := rows.Scan(&i.Vendor, &i.Analyses); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertAPICall = `
INSERT INTO api_calls (timestamp, vendor, tokens_used, cost_usd, cache_hit, analysis_hash)
VALUES (?, ?, ?, ?, ?, ?)
`

type InsertAPICallParams struct {
	Timestamp    string
	Vendor       string
	TokensUsed   int64
	CostUsd      float64
	CacheHit     bool
	AnalysisHash string
}

func (q *Queries) InsertAPICall(ctx context.Context, arg InsertAPICallParams) error {
	_, err := q.db.ExecContext(ctx, insertAPICall,
		arg.Timestamp,
		arg.Vendor,
		arg.TokensUsed,
		arg.CostUsd,
		arg.CacheHit,
		arg.AnalysisHash,
	)
	return err
}

const getVendorBreakdown = `
SELECT vendor,
       COUNT(*) AS api_calls,
       COALESCE(SUM(tokens_used), 0) AS total_tokens,
       COALESCE(SUM(cost_usd), 0.0) AS total_cost,
       COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) AS cache_hits
FROM api_calls
GROUP BY vendor
ORDER BY total_cost DESC, vendor
`

type GetVendorBreakdownRow struct {
	Vendor      string
	ApiCalls    int64
	TotalTokens int64
	TotalCost   float64
	CacheHits   int64
}

func (q *Queries) GetVendorBreakdown(ctx context.Context) ([]GetVendorBreakdownRow, error) {
	rows, err := q.db.QueryContext(ctx, getVendorBreakdown)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetVendorBreakdownRow
	for rows.Next() {
		var i GetVendorBreakdownRow
		if err := rows.Scan(
			&i.Vendor,
			&i.ApiCalls,
			&i.TotalTokens,
			&i.TotalCost,
			&i.CacheHits,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDailyTrends = `
SELECT DATE(timestamp) AS day,
       COUNT(*) AS api_calls,
       COALESCE(SUM(tokens_used), 0) AS total_tokens,
       COALESCE(SUM(cost_usd), 0.0) AS total_cost,
       COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) AS cache_hits
FROM api_calls
WHERE timestamp >= ?
GROUP BY DATE(timestamp)
ORDER BY day
`

type GetDailyTrendsRow struct {
	Day         string
	ApiCalls    int64
	TotalTokens int64
	TotalCost   float64
	CacheHits   int64
}

func (q *Queries) GetDailyTrends(ctx context.Context, since string) ([]GetDailyTrendsRow, error) {
	rows, err := q.db.QueryContext(ctx, getDailyTrends, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyTrendsRow
	for rows.Next() {
		var i GetDailyTrendsRow
		if err := rows.Scan(
			&i.Day,
			&i.ApiCalls,
			&i.TotalTokens,
			&i.TotalCost,
			&i.CacheHits,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getAPICallTotals = `
SELECT COUNT(*) AS api_calls,
       COALESCE(SUM(tokens_used), 0) AS total_tokens,
       COALESCE(SUM(cost_usd), 0.0) AS total_cost,
       COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) AS cache_hits
FROM api_calls
`

type GetAPICallTotalsRow struct {
	ApiCalls    int64
	TotalTokens int64
	TotalCost   float64
	CacheHits   int64
}

func (q *Queries) GetAPICallTotals(ctx context.Context) (GetAPICallTotalsRow, error) {
	row := q.db.QueryRowContext(ctx, getAPICallTotals)
	var i GetAPICallTotalsRow
	err := row.Scan(
		&i.ApiCalls,
		&i.TotalTokens,
		&i.TotalCost,
		&i.CacheHits,
	)
	return i, err
}

const insertCostMetric = `
INSERT INTO cost_metrics (snapshot_at, total_api_calls, total_tokens, total_cost_usd, cache_hits, cache_misses, cost_savings_usd)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type InsertCostMetricParams struct {
	SnapshotAt     string
	TotalApiCalls  int64
	TotalTokens    int64
	TotalCostUsd   float64
	CacheHits      int64
	CacheMisses    int64
	CostSavingsUsd float64
}

func (q *Queries) InsertCostMetric(ctx context.Context, arg InsertCostMetricParams) error {
	_, err := q.db.ExecContext(ctx, insertCostMetric,
		arg.SnapshotAt,
		arg.TotalApiCalls,
		arg.TotalTokens,
		arg.TotalCostUsd,
		arg.CacheHits,
		arg.CacheMisses,
		arg.CostSavingsUsd,
	)
	return err
}

const getLatestCostMetric = `
SELECT id, snapshot_at, total_api_calls, total_tokens, total_cost_usd, cache_hits, cache_misses, cost_savings_usd
FROM cost_metrics
ORDER BY id DESC
LIMIT 1
`

func (q *Queries) GetLatestCostMetric(ctx context.Context) (CostMetric, error) {
	row := q.db.QueryRowContext(ctx, getLatestCostMetric)
	var i CostMetric
	err := row.Scan(
		&i.ID,
		&i.SnapshotAt,
		&i.TotalApiCalls,
		&i.TotalTokens,
		&i.TotalCostUsd,
		&i.CacheHits,
		&i.CacheMisses,
		&i.CostSavingsUsd,
	)
	return i, err
}
