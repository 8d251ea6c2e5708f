// Package batch scans files of prompts offline and reports what the policy would do
// with each one at a given ceiling.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/policy"
)

// Pipeline reads records in batches and evaluates each batch on a worker pool
type Pipeline struct {
	engine *detection.Engine
	config Config
	logger *zap.Logger
}

// NewPipeline creates a new batch pipeline
func NewPipeline(engine *detection.Engine, config Config, logger *zap.Logger) (*Pipeline, error) {
	if !config.Ceiling.Valid() {
		return nil, fmt.Errorf("%w: %q", policy.ErrInvalidCeiling, config.Ceiling)
	}
	defaults := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.MaxTextBytes <= 0 {
		config.MaxTextBytes = defaults.MaxTextBytes
	}

	return &Pipeline{engine: engine, config: config, logger: logger}, nil
}

// ProcessFile scans the file at path, writing one JSON report line per record to report
// (which may be nil)
func (p *Pipeline) ProcessFile(ctx context.Context, path string, report io.Writer) (*Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	format := DetectFileFormat(path)
	p.logger.Info("Starting batch scan",
		zap.String("file", path),
		zap.String("format", string(format)),
		zap.String("ceiling", string(p.config.Ceiling)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	return p.Process(ctx, format, file, report)
}

// Process scans records read from r in the given format
func (p *Pipeline) Process(ctx context.Context, format FileFormat, r io.Reader, report io.Writer) (*Summary, error) {
	start := time.Now()
	summary := newSummary()

	src, err := newSource(format, r)
	if err != nil {
		return summary, err
	}
	defer src.Close()

	var enc *json.Encoder
	if report != nil {
		enc = json.NewEncoder(report)
	}

	var row, reported int64
	for {
		select {
		case <-ctx.Done():
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		default:
		}

		batch, rows, eof, err := p.readBatch(src, &row, summary)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		lines := p.processBatch(batch, rows)
		for _, line := range lines {
			summary.add(line)
			if enc != nil {
				if err := enc.Encode(line); err != nil {
					summary.Duration = time.Since(start)
					return summary, fmt.Errorf("failed to write report: %w", err)
				}
			}
		}

		if p.config.ProgressReport > 0 && summary.Processed-reported >= int64(p.config.ProgressReport) {
			p.reportProgress(summary, start)
			reported = summary.Processed
		}
		if eof {
			break
		}
	}

	summary.Duration = time.Since(start)
	p.logger.Info("Batch scan completed",
		zap.Int64("total_records", summary.TotalRecords),
		zap.Int64("processed", summary.Processed),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Int64("blocked", summary.Blocked),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// readBatch pulls up to BatchSize valid records. Bad rows and invalid records are counted
// and skipped.
func (p *Pipeline) readBatch(src source, row *int64, summary *Summary) ([]*Record, []int64, bool, error) {
	batch := make([]*Record, 0, p.config.BatchSize)
	rows := make([]int64, 0, p.config.BatchSize)

	for len(batch) < p.config.BatchSize {
		rec, err := src.Next()
		if err == io.EOF {
			return batch, rows, true, nil
		}
		*row++
		summary.TotalRecords++

		if errors.Is(err, errBadRow) {
			summary.Failed++
			summary.addError(fmt.Sprintf("row %d: %v", *row, err))
			p.logger.Warn("Failed to read record", zap.Int64("row", *row), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, nil, false, err
		}

		if reason := p.validateRecord(rec); reason != "" {
			summary.Skipped++
			p.logger.Debug("Skipping record", zap.Int64("row", *row), zap.String("reason", reason))
			continue
		}
		batch = append(batch, rec)
		rows = append(rows, *row)
	}
	return batch, rows, false, nil
}

// processBatch evaluates a batch on the worker pool; lines keep input order
func (p *Pipeline) processBatch(batch []*Record, rows []int64) []ReportLine {
	lines := make([]ReportLine, len(batch))
	jobs := make(chan int)

	workers := p.config.WorkerCount
	if workers > len(batch) {
		workers = len(batch)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				lines[i] = p.evaluate(batch[i], rows[i])
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return lines
}

func (p *Pipeline) evaluate(rec *Record, row int64) ReportLine {
	result := p.engine.Detect(rec.Text)
	// ceiling was validated in NewPipeline and result levels are always valid
	decision, _ := policy.Decide(result, p.config.Ceiling, p.config.AutoMask)

	id := rec.ID
	if id == "" {
		id = strconv.FormatInt(row, 10)
	}
	return ReportLine{
		Row:              row,
		ID:               id,
		Action:           string(decision.Action),
		Reason:           decision.Reason,
		SensitivityLevel: string(result.SensitivityLevel),
		RiskScore:        result.RiskScore,
		PatternTypes:     result.PatternTypes(),
		MaskedText:       result.MaskedText,
	}
}

// validateRecord returns why a record is skipped, or "" when it is usable
func (p *Pipeline) validateRecord(rec *Record) string {
	if strings.TrimSpace(rec.Text) == "" {
		return "empty text"
	}
	if len(rec.Text) > p.config.MaxTextBytes {
		return "text too long"
	}
	return ""
}

func (p *Pipeline) reportProgress(summary *Summary, start time.Time) {
	elapsed := time.Since(start)
	rate := float64(summary.Processed) / elapsed.Seconds()
	p.logger.Info("Processing progress",
		zap.Int64("records_processed", summary.Processed),
		zap.Int64("records_blocked", summary.Blocked),
		zap.Float64("rate_per_sec", rate))
}

func (s *Summary) add(line ReportLine) {
	s.Processed++
	switch policy.Action(line.Action) {
	case policy.ActionAllow:
		s.Allowed++
	case policy.ActionMask:
		s.Masked++
	default:
		s.Blocked++
	}
	s.ByLevel[line.SensitivityLevel]++
	for _, t := range line.PatternTypes {
		s.ByType[t]++
	}
}

func (s *Summary) addError(msg string) {
	if len(s.Errors) < maxErrors {
		s.Errors = append(s.Errors, msg)
	}
}
