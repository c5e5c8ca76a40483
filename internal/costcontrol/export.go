package costcontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportedAnalysis is one stored analysis in an export file.
type ExportedAnalysis struct {
	ID           string          `json:"id"`
	Vendor       string          `json:"vendor"`
	InvoiceDate  string          `json:"invoice_date"`
	TotalAmount  float64         `json:"total_amount"`
	AnalysisHash string          `json:"analysis_hash"`
	APICostUSD   float64         `json:"api_cost_usd"`
	TokensUsed   int64           `json:"tokens_used"`
	CreatedAt    string          `json:"created_at"`
	LastAccessed string          `json:"last_accessed"`
	AnalysisData json.RawMessage `json:"analysis_data"`
}

// CostReport is the document written by Export.
type CostReport struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	Summary         Summary            `json:"cost_summary"`
	Monitor         MonitorReport      `json:"monitor"`
	Recommendations []string           `json:"optimization_recommendations"`
	Analyses        []ExportedAnalysis `json:"analysis_export"`
}

// Report gathers everything Export writes.
func (m *Manager) Report(ctx context.Context) (CostReport, error) {
	s, err := m.Summary(ctx, DefaultTrendDays)
	if err != nil {
		return CostReport{}, err
	}
	recs, err := m.Recommendations(ctx, s)
	if err != nil {
		return CostReport{}, err
	}
	records, err := m.repo.ListAnalyses(ctx)
	if err != nil {
		return CostReport{}, fmt.Errorf("export analyses: %w", err)
	}

	out := CostReport{
		GeneratedAt:     m.now().UTC(),
		Summary:         s,
		Monitor:         Monitor(s),
		Recommendations: recs,
		Analyses:        make([]ExportedAnalysis, 0, len(records)),
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	for _, r := range records {
		data := json.RawMessage(r.AnalysisData)
		if !json.Valid(data) {
			quoted, _ := json.Marshal(r.AnalysisData)
			data = quoted
		}
		out.Analyses = append(out.Analyses, ExportedAnalysis{
			ID:           r.ID,
			Vendor:       r.Vendor,
			InvoiceDate:  r.InvoiceDate,
			TotalAmount:  r.TotalAmount,
			AnalysisHash: r.AnalysisHash,
			APICostUSD:   r.ApiCostUsd,
			TokensUsed:   r.TokensUsed,
			CreatedAt:    r.CreatedAt,
			LastAccessed: r.LastAccessed,
			AnalysisData: data,
		})
	}
	return out, nil
}

// Export writes the cost report as indented JSON.
func (m *Manager) Export(ctx context.Context, w io.Writer) error {
	report, err := m.Report(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write cost report: %w", err)
	}
	return nil
}
