package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	appcli "spendlens/internal/cli"
	"spendlens/internal/config"
	logger "spendlens/internal/log"
)

// appLogger is the process logger, set up before any command runs.
var appLogger *logger.Logger

func main() {
	appcli.LoadEnvFile()
	appLogger = appcli.SetupLogger()

	app := &cli.App{
		Name:  "spendlens",
		Usage: "analyze licensing spend in an invoice dataset",
		Commands: []*cli.Command{
			analyzeCommand(),
			cacheCommand(),
			costsCommand(),
			serveCommand(),
			enqueueCommand(),
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		appLogger.Error("Command failed", logger.FieldError, err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withRuntime loads configuration, lets override adjust it from flags and
// runs fn with a runtime that is closed afterwards.
func withRuntime(c *cli.Context, opts appcli.RuntimeOptions, override func(*config.Config), fn func(*appcli.Runtime) error) (err error) {
	cfg, err := appcli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if override != nil {
		override(cfg)
	}
	rt, err := appcli.NewRuntime(c.Context, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(rt)
}
