package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/audit"
)

type exportOptions struct {
	output     string
	format     string
	userID     string
	department string
	action     string
	decision   string
	since      string
	until      string
	limit      int
}

var exportFlags exportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit log",
	Long: `Export audit entries, newest first, as CSV, JSON lines or Parquet. The format is
taken from --format, or from the output file extension when --format is not set.

Examples:
  aishield export --output audit.csv
  aishield export --format jsonl --decision blocked --since 2026-10-01T00:00:00Z`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "", "csv, jsonl or parquet")
	exportCmd.Flags().StringVar(&exportFlags.userID, "user", "", "only entries for this user id")
	exportCmd.Flags().StringVar(&exportFlags.department, "department", "", "only entries for this department")
	exportCmd.Flags().StringVar(&exportFlags.action, "action", "", "only entries with this action")
	exportCmd.Flags().StringVar(&exportFlags.decision, "decision", "", "only entries with this decision (allowed, masked, blocked)")
	exportCmd.Flags().StringVar(&exportFlags.since, "since", "", "earliest timestamp, RFC3339")
	exportCmd.Flags().StringVar(&exportFlags.until, "until", "", "latest timestamp, RFC3339")
	exportCmd.Flags().IntVar(&exportFlags.limit, "limit", 0, "maximum number of entries (0 for all)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	filter, err := exportFilter()
	if err != nil {
		return err
	}

	format := audit.FormatJSONL
	switch {
	case exportFlags.format != "":
		if format, err = audit.ParseFormat(exportFlags.format); err != nil {
			return err
		}
	case exportFlags.output != "":
		format = audit.FormatFromPath(exportFlags.output)
	}

	ctx := context.Background()
	store, err := openAuditStore(ctx, cfg.Audit, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer store.Close()

	var out io.Writer = cmd.OutOrStdout()
	if exportFlags.output != "" {
		file, err := os.Create(exportFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		out = file
	}

	n, err := audit.Export(ctx, store, filter, format, out)
	if err != nil {
		return err
	}

	log.Info("Audit log exported",
		zap.Int("entries", n),
		zap.String("format", string(format)),
		zap.String("output", exportFlags.output))
	return nil
}

func exportFilter() (audit.Filter, error) {
	filter := audit.Filter{
		UserID:     exportFlags.userID,
		Department: exportFlags.department,
		Action:     audit.Action(exportFlags.action),
		Decision:   audit.Decision(exportFlags.decision),
		Limit:      exportFlags.limit,
	}

	var err error
	if exportFlags.since != "" {
		if filter.Start, err = time.Parse(time.RFC3339, exportFlags.since); err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if exportFlags.until != "" {
		if filter.End, err = time.Parse(time.RFC3339, exportFlags.until); err != nil {
			return filter, fmt.Errorf("invalid --until: %w", err)
		}
	}
	return filter, filter.Validate()
}
