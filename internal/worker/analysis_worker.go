package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"spendlens/internal/amqp"
	logger "spendlens/internal/log"
	"spendlens/internal/metrics"
	"spendlens/internal/report"
	"spendlens/internal/services"
)

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req services.AnalysisRequest) (*services.AnalysisOutcome, error)
}

// CompletionPublisher announces finished runs.
type CompletionPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, msg *amqp.AnalysisCompletedMessage) error
}

// AnalysisWorker handles analysis requests consumed from AMQP.
type AnalysisWorker struct {
	analyzer       Analyzer
	publisher      CompletionPublisher
	defaultFormats []report.Format
	exportSheets   bool
}

// NewAnalysisWorker creates a worker. publisher may be nil, in which case no
// completion messages are sent.
func NewAnalysisWorker(analyzer Analyzer, publisher CompletionPublisher, defaultFormats []report.Format, exportSheets bool) *AnalysisWorker {
	return &AnalysisWorker{
		analyzer:       analyzer,
		publisher:      publisher,
		defaultFormats: defaultFormats,
		exportSheets:   exportSheets,
	}
}

// HandleRequest processes a single analysis request message from AMQP.
// A request with unknown report formats fails permanently: it is reported
// as failed and not retried.
func (w *AnalysisWorker) HandleRequest(ctx context.Context, msg *amqp.AnalysisRequestMessage) error {
	slog.InfoContext(ctx, "Processing analysis request",
		logger.FieldComponent, logger.ComponentWorker,
		logger.FieldRunID, msg.RunID,
		"dataset", msg.DatasetPath,
		"use_llm", msg.UseLLM)

	formats, err := w.formats(msg.Formats)
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues(amqp.StatusFailed).Inc()
		w.publish(ctx, amqp.NewAnalysisCompletedMessage(msg.RunID, nil, 0, err))
		return nil
	}

	outcome, err := w.analyzer.Analyze(ctx, services.AnalysisRequest{
		RunID:         msg.RunID,
		DatasetPath:   msg.DatasetPath,
		Formats:       formats,
		UseLLM:        msg.UseLLM,
		LicensingOnly: msg.LicensingOnly,
		ExportSheets:  w.exportSheets,
	})
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues(amqp.StatusFailed).Inc()
		w.publish(ctx, amqp.NewAnalysisCompletedMessage(msg.RunID, nil, 0, err))
		return fmt.Errorf("analyze %s: %w", msg.RunID, err)
	}

	metrics.AnalysisRequests.WithLabelValues(amqp.StatusSucceeded).Inc()
	w.publish(ctx, amqp.NewAnalysisCompletedMessage(msg.RunID, outcome.Reports,
		outcome.Result.TotalSpend.Dollars(), nil))

	slog.InfoContext(ctx, "Successfully processed analysis request",
		logger.FieldComponent, logger.ComponentWorker,
		logger.FieldRunID, msg.RunID,
		"reports", len(outcome.Reports))
	return nil
}

func (w *AnalysisWorker) formats(requested []string) ([]report.Format, error) {
	if len(requested) == 0 {
		return w.defaultFormats, nil
	}
	return report.ParseFormats(strings.Join(requested, ","))
}

// publish is best effort: a lost completion message does not undo the run.
func (w *AnalysisWorker) publish(ctx context.Context, msg *amqp.AnalysisCompletedMessage) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishAnalysisCompleted(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish analysis completion",
			logger.FieldComponent, logger.ComponentWorker,
			logger.FieldRunID, msg.RunID,
			logger.FieldError, err)
	}
}
