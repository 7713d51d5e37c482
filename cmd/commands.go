package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Leganyst/platform-tracker/internal/model"
	"github.com/Leganyst/platform-tracker/internal/poller"
	"github.com/Leganyst/platform-tracker/internal/upstream"
)

var (
	recentLimit int

	historyDay         string
	historyTime        string
	historyDestination string
	historyAll         bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(newLogger(verbose))
		if err != nil {
			return err
		}
		defer a.close()

		v, err := model.SchemaVersion(a.db)
		if err != nil {
			return err
		}
		a.log.Info("schema up to date", "version", v)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete snapshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(newLogger(verbose))
		if err != nil {
			return err
		}
		defer a.close()

		removed, err := a.retention.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d snapshots captured before %s\n", removed, a.retention.Cutoff().Format("2006-01-02 15:04:05Z07:00"))
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch the feed once and ingest it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(newLogger(verbose))
		if err != nil {
			return err
		}
		defer a.close()

		if a.cfg.UpstreamURL == "" {
			return errors.New("UPSTREAM_URL is not set")
		}
		client, err := upstream.NewClient(upstream.Config{
			URL:     a.cfg.UpstreamURL,
			APIKey:  a.cfg.UpstreamAPIKey,
			Timeout: a.cfg.UpstreamTimeout,
			Retries: a.cfg.UpstreamRetries,
		})
		if err != nil {
			return err
		}
		p, err := poller.New(poller.Config{Location: a.cfg.Location, Clock: a.clock}, client, a.ingest, nil, a.log)
		if err != nil {
			return err
		}

		sum, err := p.PollOnce(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recent snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(newLogger(verbose))
		if err != nil {
			return err
		}
		defer a.close()

		rows, err := a.history.Recent(cmd.Context(), recentLimit)
		if err != nil {
			return err
		}
		return printJSON(rows)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the platform distribution of a recurring departure",
	Example: `  platform-tracker history --day Monday --time 14:45 --destination TLH
  platform-tracker history --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(newLogger(verbose))
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if historyAll {
			all, err := a.history.AllDistributions(ctx)
			if err != nil {
				return err
			}
			return printJSON(all)
		}

		counts, err := a.history.PlatformDistribution(ctx, historyDay, historyTime, historyDestination)
		if err != nil {
			return err
		}
		return printJSON(counts)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
