package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"spendlens/internal/cache"
	appcli "spendlens/internal/cli"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "inspect and maintain the hot cache tier",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "print hot tier statistics as JSON",
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						st, err := rt.Hot.Stats(c.Context)
						if err != nil {
							return fmt.Errorf("read cache stats: %w", err)
						}
						enc := json.NewEncoder(os.Stdout)
						enc.SetIndent("", "  ")
						return enc.Encode(st)
					})
				},
			},
			{
				Name:  "cleanup",
				Usage: "drop expired cache entries and stored analyses past retention",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "retention in days (default $RETENTION_DAYS)"},
				},
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						days := c.Int("days")
						if days <= 0 {
							days = rt.Config.RetentionDays
						}
						expired := rt.Caches.CleanNow()
						deleted, err := rt.Costs.Cleanup(c.Context, days)
						if err != nil {
							return err
						}
						fmt.Printf("Removed %d expired cache entries and %d analyses older than %d days\n", expired, deleted, days)
						return nil
					})
				},
			},
			{
				Name:  "clear",
				Usage: "remove every entry from the hot tier",
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						if err := rt.Hot.Clear(c.Context); err != nil {
							return fmt.Errorf("clear cache: %w", err)
						}
						fmt.Printf("Cleared %s cache\n", rt.Hot.Name())
						return nil
					})
				},
			},
			{
				Name:  "migrate-legacy",
				Usage: "import an old invoice cache file into the disk cache",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "legacy cache `FILE`"},
				},
				Action: func(c *cli.Context) error {
					return withRuntime(c, appcli.RuntimeOptions{}, nil, func(rt *appcli.Runtime) error {
						disk, ok := rt.Hot.(*cache.DiskStore)
						if !ok {
							return errors.New("migrate-legacy requires CACHE_BACKEND=disk")
						}
						n, err := disk.MigrateLegacy(c.Context, c.String("file"))
						if err != nil {
							return err
						}
						fmt.Printf("Migrated %d legacy records\n", n)
						return nil
					})
				},
			},
		},
	}
}
