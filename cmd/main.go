package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	envFile string

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "platform-tracker",
	Short: "Departure platform tracker",
	Long: `platform-tracker polls a departure feed, stores every change of a
departure's state as an immutable snapshot and answers which platform a
recurring departure usually leaves from.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("platform-tracker %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	recentCmd.Flags().IntVar(&recentLimit, "limit", 20, "number of snapshots to show, 0 for all")

	historyCmd.Flags().StringVar(&historyDay, "day", "", "weekday name, e.g. Monday")
	historyCmd.Flags().StringVar(&historyTime, "time", "", "scheduled time, HH:MM")
	historyCmd.Flags().StringVar(&historyDestination, "destination", "", "destination code, defaults to DEFAULT_DESTINATION")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "show every recurring departure")

	rootCmd.AddCommand(versionCmd, serveCmd, migrateCmd, sweepCmd, pollCmd, recentCmd, historyCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.RFC3339,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.TimeValue(a.Value.Time().UTC())
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}
