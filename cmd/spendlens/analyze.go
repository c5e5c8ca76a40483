package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	appcli "spendlens/internal/cli"
	"spendlens/internal/config"
	logger "spendlens/internal/log"
	"spendlens/internal/report"
	"spendlens/internal/services"
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "run the analysis and write reports",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "invoice dataset `FILE` (default $DATASET_PATH)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "report `DIR` (default $OUTPUT_DIR)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "md,json", Usage: "report formats: md,csv,json,pdf or all"},
			&cli.BoolFlag{Name: "llm", Usage: "categorize with the LLM instead of the vendor map"},
			&cli.BoolFlag{Name: "pretty", Usage: "render the Markdown report in the terminal"},
			&cli.StringFlag{Name: "style", Value: "auto", Usage: "terminal style for --pretty (auto, dark, light, notty)"},
			&cli.BoolFlag{Name: "sheets", Usage: "export the vendor summary to Google Sheets"},
			&cli.BoolFlag{Name: "all-vendors", Usage: "keep invoices that are not licensing related"},
		},
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	formats, err := report.ParseFormats(c.String("format"))
	if err != nil {
		return err
	}

	override := func(cfg *config.Config) {
		if d := c.String("dataset"); d != "" {
			cfg.DatasetPath = d
		}
		if o := c.String("out"); o != "" {
			cfg.OutputDir = o
		}
	}

	return withRuntime(c, appcli.RuntimeOptions{Sheets: c.Bool("sheets")}, override, func(rt *appcli.Runtime) error {
		useLLM := c.Bool("llm")
		if useLLM && !rt.LLMAvailable {
			slog.WarnContext(c.Context, "LLM categorization requested without ANTHROPIC_API_KEY, using vendor map",
				logger.FieldComponent, logger.ComponentLLM)
			useLLM = false
		}

		out, err := rt.Service.Analyze(c.Context, services.AnalysisRequest{
			DatasetPath:   rt.Config.DatasetPath,
			Formats:       formats,
			UseLLM:        useLLM,
			LicensingOnly: !c.Bool("all-vendors"),
			ExportSheets:  c.Bool("sheets"),
		})
		if err != nil {
			return err
		}

		if c.Bool("pretty") {
			var md bytes.Buffer
			if err := report.WriteMarkdown(&md, out.Result); err != nil {
				return err
			}
			rendered, err := report.RenderTerminal(md.String(), c.String("style"), 0)
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stdout, rendered)
		}

		res := out.Result
		fmt.Printf("Run %s: %d invoices, total spend %s, potential savings %s\n",
			res.RunID, res.InvoiceCount, res.TotalSpend, res.Executive.TotalPotentialSavings)
		fmt.Printf("Assessment: %s\n", res.Assessment)
		if len(out.Skipped) > 0 {
			fmt.Printf("Skipped %d malformed records\n", len(out.Skipped))
		}
		if res.LLM.Enabled {
			fmt.Printf("LLM: %d categorized, %d cache hits, %d fallbacks, $%.4f\n",
				res.LLM.Categorized, res.LLM.CacheHits, res.LLM.Fallbacks, res.LLM.CostUSD)
		}
		for _, p := range out.Reports {
			fmt.Println("Wrote", p)
		}
		if out.SheetsRef != "" {
			fmt.Println("Exported", out.SheetsRef)
		}
		return nil
	})
}
