package batch

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/ai-shield/internal/detection"
)

// Record is one input row. ID is optional; the row number is used when it is empty.
type Record struct {
	ID   string `parquet:"id" json:"id"`
	Text string `parquet:"text" json:"text"`
}

// ReportLine is the outcome for one record. It carries the masked text, never the original.
type ReportLine struct {
	Row              int64    `json:"row"`
	ID               string   `json:"id"`
	Action           string   `json:"action"`
	Reason           string   `json:"reason"`
	SensitivityLevel string   `json:"sensitivityLevel"`
	RiskScore        int      `json:"riskScore"`
	PatternTypes     []string `json:"patternTypes"`
	MaskedText       string   `json:"maskedText"`
}

// Summary aggregates a whole run
type Summary struct {
	TotalRecords int64            `json:"totalRecords"`
	Processed    int64            `json:"processed"`
	Skipped      int64            `json:"skipped"`
	Failed       int64            `json:"failed"`
	Allowed      int64            `json:"allowed"`
	Masked       int64            `json:"masked"`
	Blocked      int64            `json:"blocked"`
	ByLevel      map[string]int64 `json:"byLevel"`
	ByType       map[string]int64 `json:"byType"`
	Duration     time.Duration    `json:"duration"`
	Errors       []string         `json:"errors,omitempty"`
}

func newSummary() *Summary {
	return &Summary{
		ByLevel: make(map[string]int64),
		ByType:  make(map[string]int64),
	}
}

// Config contains batch scanner configuration
type Config struct {
	BatchSize      int                        `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int                        `yaml:"worker_count" mapstructure:"worker_count"`
	Ceiling        detection.SensitivityLevel `yaml:"ceiling" mapstructure:"ceiling"`
	AutoMask       bool                       `yaml:"auto_mask" mapstructure:"auto_mask"`
	MaxTextBytes   int                        `yaml:"max_text_bytes" mapstructure:"max_text_bytes"`
	ProgressReport int                        `yaml:"progress_report" mapstructure:"progress_report"`
}

// DefaultConfig returns the settings used by the scan command
func DefaultConfig() Config {
	return Config{
		BatchSize:      500,
		WorkerCount:    4,
		Ceiling:        detection.LevelInternal,
		AutoMask:       true,
		MaxTextBytes:   512 * 1024,
		ProgressReport: 10000,
	}
}

// maxErrors caps the error messages kept in a Summary
const maxErrors = 20

// FileFormat represents supported input formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSONL   FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension; anything unrecognised is read as JSONL
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	default:
		return FormatJSONL
	}
}
