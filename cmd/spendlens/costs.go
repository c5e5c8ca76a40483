package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	appcli "spendlens/internal/cli"
	"spendlens/internal/costcontrol"
)

func costsCommand() *cli.Command {
	daysFlag := func() cli.Flag {
		return &cli.IntFlag{Name: "days", Value: costcontrol.DefaultTrendDays, Usage: "trend window in days"}
	}
	return &cli.Command{
		Name:  "costs",
		Usage: "LLM cost tracking",
		Subcommands: []*cli.Command{
			{
				Name:  "summary",
				Usage: "print call counts, cost, savings and per-vendor usage",
				Flags: []cli.Flag{daysFlag(), &cli.BoolFlag{Name: "json", Usage: "print JSON"}},
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						s, err := rt.Costs.Summary(c.Context, c.Int("days"))
						if err != nil {
							return err
						}
						if c.Bool("json") {
							return printJSON(os.Stdout, s)
						}
						recs, err := rt.Costs.Recommendations(c.Context, s)
						if err != nil {
							return err
						}
						printSummary(os.Stdout, s, recs)
						return nil
					})
				},
			},
			{
				Name:  "alerts",
				Usage: "evaluate the cost alert rules",
				Flags: []cli.Flag{daysFlag()},
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						s, err := rt.Costs.Summary(c.Context, c.Int("days"))
						if err != nil {
							return err
						}
						r := costcontrol.Monitor(s)
						if len(r.Alerts) == 0 {
							fmt.Println("No alerts")
						}
						for _, a := range r.Alerts {
							fmt.Printf("[%s] %s\n", a.Kind, a.Message)
						}
						if r.Efficiency != nil {
							fmt.Printf("Efficiency: %.1f (%s)\n", r.Efficiency.Score, r.Efficiency.Status)
						}
						return nil
					})
				},
			},
			{
				Name:  "export",
				Usage: "write the full cost report as JSON",
				Flags: []cli.Flag{&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output `FILE` (default stdout)"}},
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						path := c.String("out")
						if path == "" {
							return rt.Costs.Export(c.Context, os.Stdout)
						}
						f, err := os.Create(path)
						if err != nil {
							return fmt.Errorf("create export file: %w", err)
						}
						if err := rt.Costs.Export(c.Context, f); err != nil {
							f.Close()
							return err
						}
						return f.Close()
					})
				},
			},
			{
				Name:  "cleanup",
				Usage: "delete stored analyses past retention",
				Flags: []cli.Flag{&cli.IntFlag{Name: "days", Usage: "retention in days (default $RETENTION_DAYS)"}},
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						days := c.Int("days")
						if days <= 0 {
							days = rt.Config.RetentionDays
						}
						n, err := rt.Costs.Cleanup(c.Context, days)
						if err != nil {
							return err
						}
						fmt.Printf("Deleted %d analyses older than %d days\n", n, days)
						return nil
					})
				},
			},
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s costcontrol.Summary, recs []string) {
	fmt.Fprintf(w, "API calls:      %d\n", s.APICalls)
	fmt.Fprintf(w, "Tokens:         %d\n", s.Tokens)
	fmt.Fprintf(w, "Cost:           $%.4f\n", s.CostUSD)
	fmt.Fprintf(w, "Cache hit rate: %.1f%%\n", s.CacheHitRate*100)
	fmt.Fprintf(w, "Savings:        $%.4f\n", s.CostSavingsUSD)
	fmt.Fprintf(w, "Net cost:       $%.4f\n", s.NetCostUSD)

	if len(s.Vendors) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "VENDOR\tCALLS\tTOKENS\tCOST\tHIT RATE")
		for _, v := range s.Vendors {
			fmt.Fprintf(tw, "%s\t%d\t%d\t$%.4f\t%.1f%%\n", v.Vendor, v.APICalls, v.TotalTokens, v.TotalCostUSD, v.CacheHitRate*100)
		}
		tw.Flush()
	}

	if len(recs) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, r := range recs {
			fmt.Fprintln(w, "-", r)
		}
	}
}
