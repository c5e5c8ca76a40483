package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"spendlens/internal/amqp"
	appcli "spendlens/internal/cli"
	"spendlens/internal/report"
)

func enqueueCommand() *cli.Command {
	return &cli.Command{
		Name:  "enqueue",
		Usage: "queue an analysis for spendlens-worker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "dataset `FILE` as seen by the worker (default $DATASET_PATH)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "md,json", Usage: "report formats: md,csv,json,pdf or all"},
			&cli.BoolFlag{Name: "llm", Usage: "categorize with the LLM"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := appcli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is required to enqueue analyses")
			}
			formats, err := report.ParseFormats(c.String("format"))
			if err != nil {
				return err
			}
			names := make([]string, len(formats))
			for i, f := range formats {
				names[i] = string(f)
			}

			path := c.String("dataset")
			if path == "" {
				path = cfg.DatasetPath
			}

			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			msg := amqp.NewAnalysisRequestMessage(path, names, c.Bool("llm"))
			if err := client.PublishAnalysisRequest(c.Context, msg); err != nil {
				return err
			}
			fmt.Println("Queued run", msg.RunID)
			return nil
		},
	}
}
