package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
)

// Format is an export file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSONL, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (must be csv, jsonl, or parquet)", s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to jsonl
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	default:
		return FormatJSONL
	}
}

// Row is the flat export layout shared by CSV and Parquet
type Row struct {
	ID               string `parquet:"id" csv:"id"`
	TimestampMs      int64  `parquet:"timestamp_ms" csv:"timestamp"`
	UserID           string `parquet:"user_id" csv:"user_id"`
	UserName         string `parquet:"user_name" csv:"user_name"`
	UserRole         string `parquet:"user_role" csv:"user_role"`
	Department       string `parquet:"department" csv:"department"`
	Action           string `parquet:"action" csv:"action"`
	ToolID           string `parquet:"tool_id" csv:"tool_id"`
	ToolName         string `parquet:"tool_name" csv:"tool_name"`
	InputPreview     string `parquet:"input_preview" csv:"input_preview"`
	OutputPreview    string `parquet:"output_preview" csv:"output_preview"`
	SensitivityLevel string `parquet:"sensitivity_level" csv:"sensitivity_level"`
	DetectedPatterns string `parquet:"detected_patterns" csv:"detected_patterns"` // ";" separated
	Decision         string `parquet:"decision" csv:"decision"`
	RiskScore        int64  `parquet:"risk_score" csv:"risk_score"`
	SessionID        string `parquet:"session_id" csv:"session_id"`
}

var csvHeader = []string{
	"id", "timestamp", "user_id", "user_name", "user_role", "department", "action", "tool_id",
	"tool_name", "input_preview", "output_preview", "sensitivity_level", "detected_patterns",
	"decision", "risk_score", "session_id",
}

// ToRow flattens an entry for tabular export
func ToRow(e *Entry) Row {
	return Row{
		ID:               e.ID,
		TimestampMs:      e.Timestamp.UnixMilli(),
		UserID:           e.UserID,
		UserName:         e.UserName,
		UserRole:         e.UserRole,
		Department:       e.Department,
		Action:           string(e.Action),
		ToolID:           e.ToolID,
		ToolName:         e.ToolName,
		InputPreview:     e.InputPreview,
		OutputPreview:    e.OutputPreview,
		SensitivityLevel: e.SensitivityLevel,
		DetectedPatterns: strings.Join(e.DetectedPatterns, ";"),
		Decision:         string(e.Decision),
		RiskScore:        int64(e.RiskScore),
		SessionID:        e.SessionID,
	}
}

func (r *Row) csvRecord() []string {
	return []string{
		r.ID,
		time.UnixMilli(r.TimestampMs).UTC().Format(time.RFC3339Nano),
		r.UserID, r.UserName, r.UserRole, r.Department, r.Action, r.ToolID, r.ToolName,
		r.InputPreview, r.OutputPreview, r.SensitivityLevel, r.DetectedPatterns, r.Decision,
		strconv.FormatInt(r.RiskScore, 10),
		r.SessionID,
	}
}

// Export writes every entry matching filter to w and returns how many were written
func Export(ctx context.Context, store Store, filter Filter, format Format, w io.Writer) (int, error) {
	entries, err := store.Query(ctx, filter)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatJSONL:
		err = writeJSONL(entries, w)
	case FormatCSV:
		err = writeCSV(entries, w)
	case FormatParquet:
		err = writeParquet(entries, w)
	default:
		err = fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func writeJSONL(entries []Entry, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for i := range entries {
		if err := encoder.Encode(&entries[i]); err != nil {
			return fmt.Errorf("failed to write JSONL record: %w", err)
		}
	}
	return nil
}

func writeCSV(entries []Entry, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range entries {
		row := ToRow(&entries[i])
		if err := writer.Write(row.csvRecord()); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeParquet(entries []Entry, w io.Writer) error {
	rows := make([]Row, len(entries))
	for i := range entries {
		rows[i] = ToRow(&entries[i])
	}

	writer := parquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write Parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish Parquet file: %w", err)
	}
	return nil
}
