package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"spendlens/internal/analysis"
	"spendlens/internal/dataset"
	logger "spendlens/internal/log"
	"spendlens/internal/report"
	"spendlens/internal/sheets"
)

// AnalysisRequest describes one run.
type AnalysisRequest struct {
	// RunID is generated when empty.
	RunID       string
	DatasetPath string
	// Formats selects the report files; none means no files are written.
	Formats       []report.Format
	UseLLM        bool
	LicensingOnly bool
	ExportSheets  bool
}

// AnalysisOutcome is what a run produced.
type AnalysisOutcome struct {
	Result    *analysis.Result
	Reports   []string
	Skipped   []dataset.Skipped
	SheetsRef string
}

// AnalysisService orchestrates load, analysis, report writing and the
// optional spreadsheet export.
type AnalysisService struct {
	pipeline  *analysis.Pipeline
	sheets    sheets.SummaryWriter
	outputDir string
	defaults  analysis.Options
}

// NewAnalysisService creates the service. sheetsWriter may be nil.
func NewAnalysisService(pipeline *analysis.Pipeline, sheetsWriter sheets.SummaryWriter, outputDir string, defaults analysis.Options) *AnalysisService {
	return &AnalysisService{
		pipeline:  pipeline,
		sheets:    sheetsWriter,
		outputDir: outputDir,
		defaults:  defaults,
	}
}

// Analyze runs the full pipeline. A failing Sheets export is logged and does
// not fail the run.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisOutcome, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	loaded, err := dataset.LoadFile(req.DatasetPath)
	if err != nil {
		return nil, err
	}
	for _, sk := range loaded.Skipped {
		slog.WarnContext(ctx, "Skipped dataset record",
			logger.FieldComponent, logger.ComponentDataset,
			logger.FieldRunID, runID,
			"key", sk.Key,
			"reason", sk.Reason)
	}

	opts := s.defaults
	opts.UseLLM = req.UseLLM
	opts.LicensingOnly = req.LicensingOnly

	res, err := s.pipeline.Run(ctx, loaded.Invoices, opts)
	if err != nil {
		return nil, fmt.Errorf("run analysis: %w", err)
	}
	res.RunID = runID

	out := &AnalysisOutcome{Result: res, Skipped: loaded.Skipped}
	if len(req.Formats) > 0 {
		out.Reports, err = report.WriteAll(s.outputDir, runID, res, req.Formats)
		if err != nil {
			return nil, fmt.Errorf("write reports: %w", err)
		}
	}

	if req.ExportSheets {
		out.SheetsRef = s.exportSheets(ctx, res)
	}

	slog.InfoContext(ctx, "Analysis run finished",
		logger.FieldComponent, logger.ComponentAnalysis,
		logger.FieldRunID, runID,
		"invoices", res.InvoiceCount,
		"total_spend", res.TotalSpend.String(),
		"reports", len(out.Reports))
	return out, nil
}

func (s *AnalysisService) exportSheets(ctx context.Context, res *analysis.Result) string {
	if s.sheets == nil {
		slog.WarnContext(ctx, "Sheets export requested but no spreadsheet is configured",
			logger.FieldComponent, logger.ComponentSheets,
			logger.FieldRunID, res.RunID)
		return ""
	}
	ref, err := s.sheets.WriteSummary(ctx, sheets.SummaryFromResult(res))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export summary to Sheets",
			logger.FieldComponent, logger.ComponentSheets,
			logger.FieldRunID, res.RunID,
			logger.FieldError, err)
		return ""
	}
	return ref
}
