package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendlens/internal/amqp"
	appcli "spendlens/internal/cli"
	logger "spendlens/internal/log"
	"spendlens/internal/metrics"
	"spendlens/internal/report"
	"spendlens/internal/services"
	"spendlens/internal/worker"
)

func main() {
	appcli.LoadEnvFile()
	l := appcli.SetupLogger().WithComponent(logger.ComponentWorker)
	l.Info("Starting spendlens-worker")

	cfg, err := appcli.LoadAndValidateConfig()
	if err != nil {
		l.Error("Configuration validation failed", logger.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		l.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	rt, err := appcli.NewRuntime(context.Background(), cfg, appcli.RuntimeOptions{Sheets: true, Notify: true})
	if err != nil {
		l.Error("Failed to initialize runtime", logger.FieldError, err)
		os.Exit(1)
	}
	defer rt.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		l.Error("Failed to initialize AMQP client", logger.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportSheets := cfg.GoogleSpreadsheetID != ""
	analysisWorker := worker.NewAnalysisWorker(rt.Service, amqpClient, []report.Format{report.FormatMarkdown, report.FormatJSON}, exportSheets)

	maintenance := services.NewMaintenance(rt.Costs, rt.Caches, rt.Notifier, services.MaintenanceConfig{
		Interval:        cfg.CleanupInterval,
		RetentionDays:   cfg.RetentionDays,
		AlertWindowDays: 7,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !maintenance.IsRunning() {
			http.Error(w, "maintenance stopped", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})
	metricsSrv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop, done := appcli.GracefulShutdown(l, 30*time.Second, func(ctx context.Context) {
		if err := maintenance.Stop(ctx); err != nil {
			l.Warn("Maintenance stop error", logger.FieldError, err)
		}
		if err := metricsSrv.Shutdown(ctx); err != nil {
			l.Warn("Metrics server shutdown error", logger.FieldError, err)
		}
	})

	if err := maintenance.Start(ctx); err != nil {
		l.Error("Failed to start maintenance", logger.FieldError, err)
		os.Exit(1)
	}

	go func() {
		l.Info("Serving worker metrics", "addr", cfg.WorkerMetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Metrics server failed", logger.FieldError, err)
		}
	}()

	err = amqpClient.ConsumeAnalysisRequests(ctx, analysisWorker.HandleRequest)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.Error("Message consumption failed", logger.FieldError, err)
	}
	stop()

	<-done
	l.Info("Worker stopped")
}
