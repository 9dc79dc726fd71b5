package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fscrawl/fscrawl/internal/state"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show job state",
		Long: `Display what is recorded for the configured job: how many files the
index currently tracks and where state lives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, _, cleanup, err := loadJob()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := os.Stat(cfg.StatePath()); err != nil {
		return fmt.Errorf("no state recorded for job %q; run 'fscrawl crawl' first", cfg.Name)
	}

	store, err := state.Open(cfg.StatePath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tracked, err := store.Count(cmd.Context(), cfg.Name)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"job":        cfg.Name,
			"root":       cfg.FS.Root,
			"index":      cfg.Output.Index,
			"tracked":    tracked,
			"state_path": cfg.StatePath(),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Job:     %s\n", cfg.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "Root:    %s\n", cfg.FS.Root)
	fmt.Fprintf(cmd.OutOrStdout(), "Index:   %s\n", cfg.Output.Index)
	fmt.Fprintf(cmd.OutOrStdout(), "Tracked: %d files\n", tracked)
	fmt.Fprintf(cmd.OutOrStdout(), "State:   %s\n", cfg.StatePath())
	return nil
}
