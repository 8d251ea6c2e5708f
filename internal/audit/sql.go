package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLConfig contains database configuration for the SQL store
type SQLConfig struct {
	Driver       string // sqlite or postgres
	DSN          string
	MaxOpenConns int
}

// SQLStore persists entries in SQLite or PostgreSQL through sqlx
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id                TEXT PRIMARY KEY,
		ts                BIGINT NOT NULL,
		user_id           TEXT NOT NULL,
		user_name         TEXT NOT NULL,
		user_role         TEXT NOT NULL,
		department        TEXT NOT NULL,
		action            TEXT NOT NULL,
		tool_id           TEXT NOT NULL,
		tool_name         TEXT NOT NULL,
		input_preview     TEXT NOT NULL,
		output_preview    TEXT NOT NULL,
		sensitivity_level TEXT NOT NULL,
		detected_patterns TEXT NOT NULL,
		decision          TEXT NOT NULL,
		risk_score        INTEGER NOT NULL,
		session_id        TEXT NOT NULL,
		ip_address        TEXT NOT NULL,
		user_agent        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_user ON audit_entries (user_id, ts)`,
}

// entryRow is the column layout of audit_entries. Timestamps are unix nanoseconds and
// detected pattern names are a JSON array so that both drivers share one schema.
type entryRow struct {
	ID               string `db:"id"`
	Timestamp        int64  `db:"ts"`
	UserID           string `db:"user_id"`
	UserName         string `db:"user_name"`
	UserRole         string `db:"user_role"`
	Department       string `db:"department"`
	Action           string `db:"action"`
	ToolID           string `db:"tool_id"`
	ToolName         string `db:"tool_name"`
	InputPreview     string `db:"input_preview"`
	OutputPreview    string `db:"output_preview"`
	SensitivityLevel string `db:"sensitivity_level"`
	DetectedPatterns string `db:"detected_patterns"`
	Decision         string `db:"decision"`
	RiskScore        int    `db:"risk_score"`
	SessionID        string `db:"session_id"`
	IPAddress        string `db:"ip_address"`
	UserAgent        string `db:"user_agent"`
}

const columns = `id, ts, user_id, user_name, user_role, department, action, tool_id, tool_name,
	input_preview, output_preview, sensitivity_level, detected_patterns, decision, risk_score,
	session_id, ip_address, user_agent`

// NewSQLStore connects to the database and creates the schema if needed
func NewSQLStore(ctx context.Context, config SQLConfig, logger *zap.Logger) (*SQLStore, error) {
	if config.Driver != "sqlite" && config.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported audit driver: %s", config.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A sqlite in-memory database exists per connection
	if config.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	store := &SQLStore{db: db, logger: logger}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("driver", config.Driver),
		zap.String("dsn", maskDSN(config.DSN)),
	)

	return store, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts one entry
func (s *SQLStore) Append(ctx context.Context, entry *Entry) error {
	row, err := toRow(entry)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_entries (` + columns + `) VALUES (
		:id, :ts, :user_id, :user_name, :user_role, :department, :action, :tool_id, :tool_name,
		:input_preview, :output_preview, :sensitivity_level, :detected_patterns, :decision, :risk_score,
		:session_id, :ip_address, :user_agent)`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.Error("Failed to insert audit entry", zap.String("id", entry.ID), zap.Error(err))
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries newest first
func (s *SQLStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Department != "" {
		where = append(where, "department = ?")
		args = append(args, filter.Department)
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, string(filter.Decision))
	}
	if !filter.Start.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, filter.Start.UnixNano())
	}
	if !filter.End.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, filter.End.UnixNano())
	}

	query := "SELECT " + columns + " FROM audit_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i := range rows {
		e, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Count returns the number of stored entries
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM audit_entries"); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// DeleteBefore removes entries older than cutoff
func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM audit_entries WHERE ts < ?"), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}
	return res.RowsAffected()
}

// TrimTo keeps only the newest max entries
func (s *SQLStore) TrimTo(ctx context.Context, max int) (int64, error) {
	if max < 0 {
		return 0, nil
	}

	query := s.db.Rebind(`DELETE FROM audit_entries WHERE id NOT IN (
		SELECT id FROM audit_entries ORDER BY ts DESC, id DESC LIMIT ?)`)
	res, err := s.db.ExecContext(ctx, query, max)
	if err != nil {
		return 0, fmt.Errorf("failed to trim audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toRow(e *Entry) (*entryRow, error) {
	patterns := e.DetectedPatterns
	if patterns == nil {
		patterns = []string{}
	}
	encoded, err := json.Marshal(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detected patterns: %w", err)
	}

	return &entryRow{
		ID:               e.ID,
		Timestamp:        e.Timestamp.UnixNano(),
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
		DetectedPatterns: string(encoded),
		Decision:         string(e.Decision),
		RiskScore:        e.RiskScore,
		SessionID:        e.SessionID,
		IPAddress:        e.IPAddress,
		UserAgent:        e.UserAgent,
	}, nil
}

func fromRow(r *entryRow) (Entry, error) {
	var patterns []string
	if err := json.Unmarshal([]byte(r.DetectedPatterns), &patterns); err != nil {
		return Entry{}, fmt.Errorf("entry %s: failed to decode detected patterns: %w", r.ID, err)
	}

	return Entry{
		ID:               r.ID,
		Timestamp:        time.Unix(0, r.Timestamp).UTC(),
		UserID:           r.UserID,
		UserName:         r.UserName,
		UserRole:         r.UserRole,
		Department:       r.Department,
		Action:           Action(r.Action),
		ToolID:           r.ToolID,
		ToolName:         r.ToolName,
		InputPreview:     r.InputPreview,
		OutputPreview:    r.OutputPreview,
		SensitivityLevel: r.SensitivityLevel,
		DetectedPatterns: patterns,
		Decision:         Decision(r.Decision),
		RiskScore:        r.RiskScore,
		SessionID:        r.SessionID,
		IPAddress:        r.IPAddress,
		UserAgent:        r.UserAgent,
	}, nil
}

// maskDSN hides the password in a connection string for logging
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	userPart := dsn[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon <= scheme+2 {
		return dsn
	}
	return userPart[:colon+1] + "***" + dsn[at:]
}
