package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"spendlens/internal/analysis"
	appcli "spendlens/internal/cli"
	"spendlens/internal/config"
	apphttp "spendlens/internal/http"
	logger "spendlens/internal/log"
	"spendlens/internal/middleware/ratelimit"
	"spendlens/internal/services"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the dashboard and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "invoice dataset `FILE` (default $DATASET_PATH)"},
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port (default $PORT)"},
			&cli.BoolFlag{Name: "llm", Usage: "categorize with the LLM on every reload"},
			&cli.BoolFlag{Name: "watch", Value: true, Usage: "reload when the dataset file changes"},
			&cli.IntFlag{Name: "rate-limit", Value: 120, Usage: "requests per minute per client"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	override := func(cfg *config.Config) {
		if d := c.String("dataset"); d != "" {
			cfg.DatasetPath = d
		}
		if p := c.String("port"); p != "" {
			cfg.Port = p
		}
	}

	return withRuntime(c, appcli.RuntimeOptions{}, override, func(rt *appcli.Runtime) error {
		l := appLogger.WithComponent(logger.ComponentHTTP)
		useLLM := c.Bool("llm") && rt.LLMAvailable

		srv := apphttp.NewServer(apphttp.Options{
			Addr: ":" + rt.Config.Port,
			Load: func(ctx context.Context) (*analysis.Result, error) {
				out, err := rt.Service.Analyze(ctx, services.AnalysisRequest{
					DatasetPath:   rt.Config.DatasetPath,
					UseLLM:        useLLM,
					LicensingOnly: true,
				})
				if err != nil {
					return nil, err
				}
				return out.Result, nil
			},
			Costs:     rt.Costs,
			Storage:   rt.Repo,
			RateLimit: ratelimit.Config{RequestsPerMinute: c.Int("rate-limit")},
			Logger:    l,
		})

		rt.Caches.StartCleanup(rt.Config.CleanupInterval)
		defer rt.Caches.Stop()

		ctx, stop, done := appcli.GracefulShutdown(l, 30*time.Second, func(ctx context.Context) {
			if err := srv.Shutdown(ctx); err != nil {
				l.Error("Server shutdown error", logger.FieldError, err)
			}
		})

		// A failed first load leaves /readyz unready until the dataset is fixed.
		_ = srv.Reload(ctx)

		if c.Bool("watch") {
			go func() {
				if err := srv.Watch(ctx, rt.Config.DatasetPath); err != nil && !errors.Is(err, context.Canceled) {
					slog.ErrorContext(ctx, "Dataset watcher stopped",
						logger.FieldComponent, logger.ComponentDataset,
						logger.FieldError, err)
				}
			}()
		}

		l.Info("Starting spendlens dashboard", "port", rt.Config.Port, "dataset", rt.Config.DatasetPath, "watch", c.Bool("watch"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-done
			return err
		}
		<-done
		l.Info("Server stopped gracefully")
		return nil
	})
}
