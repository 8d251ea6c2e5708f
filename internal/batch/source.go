package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
)

// errBadRow marks a row that could not be decoded; reading continues after it
var errBadRow = errors.New("bad row")

// source yields records one at a time and returns io.EOF when exhausted
type source interface {
	Next() (*Record, error)
	Close() error
}

func newSource(format FileFormat, r io.Reader) (source, error) {
	switch format {
	case FormatCSV:
		return newCSVSource(r)
	case FormatParquet:
		return newParquetSource(r)
	case FormatJSONL:
		return newJSONLSource(r), nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

type csvSource struct {
	reader  *csv.Reader
	textCol int
	idCol   int
}

func newCSVSource(r io.Reader) (*csvSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	src := &csvSource{reader: reader, textCol: -1, idCol: -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "text":
			src.textCol = i
		case "id":
			src.idCol = i
		}
	}
	if src.textCol < 0 {
		return nil, fmt.Errorf("CSV header has no text column: %v", header)
	}
	return src, nil
}

func (s *csvSource) Next() (*Record, error) {
	row, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRow, err)
	}
	if s.textCol >= len(row) {
		return nil, fmt.Errorf("%w: row has %d fields, text is column %d", errBadRow, len(row), s.textCol+1)
	}

	rec := &Record{Text: row[s.textCol]}
	if s.idCol >= 0 && s.idCol < len(row) {
		rec.ID = strings.TrimSpace(row[s.idCol])
	}
	return rec, nil
}

func (s *csvSource) Close() error { return nil }

type parquetSource struct {
	reader *parquet.Reader
}

func newParquetSource(r io.Reader) (*parquetSource, error) {
	var (
		ra   io.ReaderAt
		size int64
	)
	switch in := r.(type) {
	case *os.File:
		info, err := in.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat Parquet input: %w", err)
		}
		ra, size = in, info.Size()
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet input: %w", err)
		}
		ra, size = bytes.NewReader(data), int64(len(data))
	}

	file, err := parquet.OpenFile(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet input: %w", err)
	}
	return &parquetSource{reader: parquet.NewReader(file)}, nil
}

func (s *parquetSource) Next() (*Record, error) {
	var rec Record
	if err := s.reader.Read(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read Parquet record: %w", err)
	}
	return &rec, nil
}

func (s *parquetSource) Close() error {
	return s.reader.Close()
}

type jsonlSource struct {
	scanner *bufio.Scanner
}

func newJSONLSource(r io.Reader) *jsonlSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &jsonlSource{scanner: scanner}
}

func (s *jsonlSource) Next() (*Record, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRow, err)
		}
		return &rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL input: %w", err)
	}
	return nil, io.EOF
}

func (s *jsonlSource) Close() error { return nil }
