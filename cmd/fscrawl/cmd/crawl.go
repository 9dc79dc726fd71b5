package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fscrawl/fscrawl/internal/client"
	"github.com/fscrawl/fscrawl/internal/config"
	"github.com/fscrawl/fscrawl/internal/crawler"
	"github.com/fscrawl/fscrawl/internal/state"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl and exit",
		Long: `Walk the configured root once, index new and changed files, remove
vanished ones from the index, and exit. Only acknowledged operations
are recorded, so an interrupted run picks up where it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), false)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Crawl once, then keep the index in sync",
		Long: `Run an initial crawl and stay running: filesystem events and a
periodic rescan keep the index synchronized until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), true)
		},
	}
}

func runOnce(ctx context.Context, watch bool) error {
	cfg, logger, cleanup, err := loadJob()
	if err != nil {
		return err
	}
	defer cleanup()

	// One crawl per job at a time; a second invocation fails fast
	// instead of fighting over state.
	lock := state.NewRunLock(cfg.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another crawl of job %q is already running", cfg.Name)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := state.Open(cfg.StatePath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cl, err := client.New(client.Config{
		URL:      cfg.Output.URL,
		Username: cfg.Output.Username,
		Password: cfg.Output.Password,
		Timeout:  cfg.Output.Timeout.Std(),
	})
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.Ping(ctx); err != nil {
		return fmt.Errorf("destination %s not reachable: %w", cfg.Output.URL, err)
	}

	c, err := crawler.New(cfg, store, cl, logger)
	if err != nil {
		return err
	}

	if watch {
		logger.Info("watching", slog.String("root", cfg.FS.Root),
			slog.String("index", cfg.Output.Index))
		return c.Watch(ctx)
	}

	logger.Info("crawl starting", slog.String("root", cfg.FS.Root),
		slog.String("index", cfg.Output.Index))
	start := time.Now()
	res, err := c.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(cfg, res, time.Since(start))
	return nil
}

func printSummary(cfg *config.Config, res *crawler.Result, elapsed time.Duration) {
	fmt.Printf("Job %s finished in %s\n", cfg.Name, elapsed.Round(time.Millisecond))
	fmt.Printf("  indexed:   %d\n", res.Indexed)
	fmt.Printf("  deleted:   %d\n", res.Deleted)
	fmt.Printf("  unchanged: %d\n", res.Unchanged)
	fmt.Printf("  skipped:   %d\n", res.Skipped)
	if res.Retried > 0 {
		fmt.Printf("  retried:   %d\n", res.Retried)
	}
	if res.Unsettled > 0 {
		fmt.Printf("  unsettled: %d\n", res.Unsettled)
	}
	if len(res.Failures) > 0 {
		fmt.Printf("  failed:    %d\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Printf("    %s: %s\n", f.Op.RealPath, f.Reason)
		}
	}
}
