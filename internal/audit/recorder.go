package audit

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/raaihank/ai-shield/internal/detection"
	"go.uber.org/zap"
)

// DefaultPreviewLength is the number of characters kept from inputs and outputs
const DefaultPreviewLength = 200

// Actor identifies who made a request
type Actor struct {
	ID         string
	Name       string
	Role       string
	Department string
	SessionID  string
	IPAddress  string
	UserAgent  string
}

// Record is everything needed to build one entry
type Record struct {
	Actor    Actor
	Action   Action
	ToolID   string
	ToolName string
	Input    string
	Output   string
	Result   *detection.Result // nil for events without a scan, e.g. access denials
	Decision Decision
}

// Recorder turns evaluations into entries and appends them to a Store
type Recorder struct {
	store         Store
	previewLength int
	logger        *zap.Logger
	now           func() time.Time
}

// NewRecorder creates a recorder. A non-positive previewLength uses DefaultPreviewLength.
func NewRecorder(store Store, previewLength int, logger *zap.Logger) *Recorder {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	return &Recorder{
		store:         store,
		previewLength: previewLength,
		logger:        logger,
		now:           time.Now,
	}
}

// Store returns the underlying store
func (r *Recorder) Store() Store {
	return r.store
}

// Record builds an entry from rec and appends it. The input preview uses the masked
// text unless the request was allowed unchanged.
func (r *Recorder) Record(ctx context.Context, rec Record) (*Entry, error) {
	sessionID := rec.Actor.SessionID
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()[:8]
	}

	entry := &Entry{
		ID:               "audit_" + uuid.NewString(),
		Timestamp:        r.now(),
		UserID:           rec.Actor.ID,
		UserName:         rec.Actor.Name,
		UserRole:         rec.Actor.Role,
		Department:       rec.Actor.Department,
		Action:           rec.Action,
		ToolID:           rec.ToolID,
		ToolName:         rec.ToolName,
		Decision:         rec.Decision,
		SessionID:        sessionID,
		IPAddress:        rec.Actor.IPAddress,
		UserAgent:        rec.Actor.UserAgent,
		DetectedPatterns: []string{},
	}

	input := rec.Input
	if rec.Result != nil {
		entry.SensitivityLevel = string(rec.Result.SensitivityLevel)
		entry.RiskScore = rec.Result.RiskScore
		entry.DetectedPatterns = rec.Result.PatternTypes()
		if rec.Decision != DecisionAllowed {
			input = rec.Result.MaskedText
		}
	}
	entry.InputPreview = Preview(input, r.previewLength)
	if rec.Output != "" {
		entry.OutputPreview = Preview(rec.Output, r.previewLength)
	}

	if err := r.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	r.logger.Debug("Audit entry recorded",
		zap.String("id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("action", string(entry.Action)),
		zap.String("decision", string(entry.Decision)),
		zap.Int("risk_score", entry.RiskScore),
	)

	return entry, nil
}

// Preview returns the first n characters of s, with "..." appended when s was longer
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
