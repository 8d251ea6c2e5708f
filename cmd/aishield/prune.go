package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raaihank/ai-shield/internal/audit"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply audit retention once",
	Long: `Delete audit entries older than audit.retention_days, then the oldest entries beyond
audit.max_records. This is the same job the server runs on audit.prune_schedule.`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	store, err := openAuditStore(ctx, cfg.Audit, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer store.Close()

	deleted, err := audit.NewPruner(store, retentionConfig(cfg.Audit), log.Logger).Prune(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries\n", deleted)
	return nil
}
