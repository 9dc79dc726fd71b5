// Package cmd provides the CLI commands for fscrawl.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fscrawl/fscrawl/internal/config"
	"github.com/fscrawl/fscrawl/internal/logging"
	"github.com/fscrawl/fscrawl/pkg/version"
)

var (
	configPath string
	logLevel   string
	logFile    string
	quiet      bool
)

// NewRootCmd creates the root command for the fscrawl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fscrawl",
		Short: "Incremental filesystem crawler for search indexes",
		Long: `fscrawl walks a directory tree, detects new, changed and removed
files, and keeps a remote search index in sync through the bulk REST
protocol. Crawl state is recorded per job, so repeat runs only touch
what actually changed.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("fscrawl version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the job configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Override the configured log file")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress stderr logging")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadJob loads the job configuration and builds its logger.
func loadJob() (*config.Config, *slog.Logger, func(), error) {
	if configPath == "" {
		return nil, nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	file := cfg.Log.File
	if logFile != "" {
		file = logFile
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level: level,
		File:  file,
		Quiet: quiet,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}
