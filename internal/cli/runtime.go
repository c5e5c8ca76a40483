package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendlens/internal/analysis"
	"spendlens/internal/backend"
	"spendlens/internal/benchmark"
	"spendlens/internal/cache"
	"spendlens/internal/config"
	"spendlens/internal/costcontrol"
	"spendlens/internal/llm"
	logger "spendlens/internal/log"
	"spendlens/internal/notify"
	"spendlens/internal/services"
	"spendlens/internal/sheets"
	gsheet "spendlens/internal/sheets/google"
	"spendlens/internal/storage"
)

// Runtime holds the dependencies every command builds from Config.
type Runtime struct {
	Config   *config.Config
	Repo     *storage.SQLiteRepository
	Hot      cache.Store
	Caches   *cache.Manager
	Costs    *costcontrol.Manager
	Table    *benchmark.Table
	Pipeline *analysis.Pipeline
	Service  *services.AnalysisService
	Notifier notify.Notifier

	// LLMAvailable is false when no API key is configured; --llm then
	// falls back to the vendor map.
	LLMAvailable bool

	closers []func() error
}

// RuntimeOptions turn off dependencies a command does not need.
type RuntimeOptions struct {
	// Sheets connects the Google Sheets exporter when a spreadsheet is configured.
	Sheets bool
	// Notify connects SNS when a topic is configured.
	Notify bool
}

// NewRuntime opens the cost-control database and hot cache tier and wires
// the analysis pipeline on top of them. Close releases everything.
func NewRuntime(ctx context.Context, cfg *config.Config, opts RuntimeOptions) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg, Caches: cache.NewManager()}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.Repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open cost-control database: %w", err)
	}
	rt.closers = append(rt.closers, rt.Repo.Close)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("cache backend config: %w", err)
	}
	hot, err := backend.NewFactory(slog.Default()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create cache backend: %w", err)
	}
	rt.Hot = hot.Store
	if hot.Cleanup != nil {
		rt.closers = append(rt.closers, hot.Cleanup)
	}
	rt.Caches.Register(rt.Hot)

	rt.Costs, err = costcontrol.NewManager(ctx, rt.Repo, rt.Hot)
	if err != nil {
		return nil, fmt.Errorf("create cost manager: %w", err)
	}

	rt.Table = benchmark.Default()
	if cfg.BenchmarkFile != "" {
		rt.Table, err = benchmark.LoadOverrides(cfg.BenchmarkFile)
		if err != nil {
			return nil, fmt.Errorf("load benchmark overrides: %w", err)
		}
	}

	var categorizer analysis.Categorizer
	if cfg.AnthropicAPIKey != "" {
		client := llm.NewClient(llm.Config{
			APIKey:            cfg.AnthropicAPIKey,
			Model:             cfg.LLMModel,
			MaxTokens:         cfg.LLMMaxTokens,
			Temperature:       cfg.LLMTemperature,
			Timeout:           cfg.LLMTimeout,
			MaxRetries:        cfg.LLMMaxRetries,
			RequestsPerMinute: cfg.LLMRequestsPerMinute,
		})
		categorizer = analysis.NewCostControlledCategorizer(rt.Costs, llm.NewCategorizer(client, cfg.LLMCostPer1KTokens))
		rt.LLMAvailable = true
	}
	rt.Pipeline = analysis.NewPipeline(rt.Table, categorizer)

	var writer sheets.SummaryWriter
	if opts.Sheets && cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			// Export is optional; analysis still runs.
			slog.WarnContext(ctx, "Google Sheets export disabled",
				logger.FieldComponent, logger.ComponentSheets,
				logger.FieldError, err)
		} else {
			writer = client
		}
	}

	rt.Service = services.NewAnalysisService(rt.Pipeline, writer, cfg.OutputDir, analysis.Options{
		LicensingOnly:     true,
		UseLLM:            cfg.LLMEnabled,
		BatchSize:         cfg.LLMBatchSize,
		BaselineEmployees: cfg.BaselineEmployees,
		CurrentEmployees:  cfg.CurrentEmployees,
	})

	rt.Notifier = notify.LogNotifier{}
	if opts.Notify {
		rt.Notifier, err = notify.FromConfig(ctx, cfg.SNSTopicARN)
		if err != nil {
			return nil, fmt.Errorf("create notifier: %w", err)
		}
	}

	return rt, nil
}

// Close snapshots the cost counters and releases resources in reverse order.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Costs != nil {
		if err := rt.Costs.Snapshot(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("snapshot cost counters: %w", err))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
