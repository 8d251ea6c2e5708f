package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/batch"
	"github.com/raaihank/ai-shield/internal/detection"
)

var scanFlags struct {
	input     string
	output    string
	ceiling   string
	autoMask  bool
	workers   int
	batchSize int
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a file of prompts offline",
	Long: `Scan every record of a CSV, JSONL or Parquet file and report the decision the
policy would make at the given ceiling. CSV input needs a "text" column; JSONL and
Parquet records use the fields "id" and "text".

The report is written as JSON lines. Each line carries the masked text of its record,
which is the original text unchanged when nothing was detected. A summary is printed to
stdout when the scan finishes.

Examples:
  aishield scan --input prompts.jsonl --ceiling internal
  aishield scan --input prompts.parquet --ceiling public --auto-mask=false --output report.jsonl`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	defaults := batch.DefaultConfig()
	scanCmd.Flags().StringVarP(&scanFlags.input, "input", "i", "", "input file (.csv, .jsonl or .parquet)")
	scanCmd.Flags().StringVarP(&scanFlags.output, "output", "o", "", "report file (default: no report)")
	scanCmd.Flags().StringVar(&scanFlags.ceiling, "ceiling", string(defaults.Ceiling), "highest sensitivity level allowed (public, internal, confidential, restricted)")
	scanCmd.Flags().BoolVar(&scanFlags.autoMask, "auto-mask", defaults.AutoMask, "mask records above the ceiling instead of blocking them")
	scanCmd.Flags().IntVarP(&scanFlags.workers, "workers", "w", defaults.WorkerCount, "number of worker goroutines")
	scanCmd.Flags().IntVar(&scanFlags.batchSize, "batch-size", defaults.BatchSize, "records per batch")
	_ = scanCmd.MarkFlagRequired("input")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ceiling, err := detection.ParseLevel(scanFlags.ceiling)
	if err != nil {
		return err
	}

	engine, err := detection.New(cfg.Detection, log)
	if err != nil {
		return err
	}

	batchConfig := batch.DefaultConfig()
	batchConfig.Ceiling = ceiling
	batchConfig.AutoMask = scanFlags.autoMask
	batchConfig.WorkerCount = scanFlags.workers
	batchConfig.BatchSize = scanFlags.batchSize

	pipeline, err := batch.NewPipeline(engine, batchConfig, log.Logger)
	if err != nil {
		return err
	}

	var report io.Writer
	if scanFlags.output != "" {
		file, err := os.Create(scanFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer file.Close()
		report = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.ProcessFile(ctx, scanFlags.input, report)
	if err != nil {
		log.Error("Scan failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
