package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raaihank/ai-shield/internal/policy"
)

// Action is the kind of activity an entry records
type Action string

const (
	ActionTextGeneration        Action = "text_generation"
	ActionCodeAssistance        Action = "code_assistance"
	ActionDocumentSummarization Action = "document_summarization"
	ActionDataAnalysis          Action = "data_analysis"
	ActionImageGeneration       Action = "image_generation"
	ActionTranslation           Action = "translation"
	ActionLogin                 Action = "login"
	ActionLogout                Action = "logout"
	ActionPolicyViolation       Action = "policy_violation"
	ActionAccessDenied          Action = "access_denied"
)

var validActions = map[Action]bool{
	ActionTextGeneration:        true,
	ActionCodeAssistance:        true,
	ActionDocumentSummarization: true,
	ActionDataAnalysis:          true,
	ActionImageGeneration:       true,
	ActionTranslation:           true,
	ActionLogin:                 true,
	ActionLogout:                true,
	ActionPolicyViolation:       true,
	ActionAccessDenied:          true,
}

// Valid reports whether a is a known action
func (a Action) Valid() bool {
	return validActions[a]
}

// Decision is the recorded outcome of a request
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionMasked  Decision = "masked"
	DecisionBlocked Decision = "blocked"
)

// Valid reports whether d is a known decision
func (d Decision) Valid() bool {
	return d == DecisionAllowed || d == DecisionMasked || d == DecisionBlocked
}

// DecisionFor converts a policy action into its audit form
func DecisionFor(a policy.Action) Decision {
	switch a {
	case policy.ActionAllow:
		return DecisionAllowed
	case policy.ActionMask:
		return DecisionMasked
	default:
		return DecisionBlocked
	}
}

// Entry is one audit record
type Entry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	UserID           string    `json:"userId"`
	UserName         string    `json:"userName"`
	UserRole         string    `json:"userRole"`
	Department       string    `json:"department"`
	Action           Action    `json:"action"`
	ToolID           string    `json:"toolId"`
	ToolName         string    `json:"toolName"`
	InputPreview     string    `json:"inputPreview"`
	OutputPreview    string    `json:"outputPreview,omitempty"`
	SensitivityLevel string    `json:"sensitivityLevel"`
	DetectedPatterns []string  `json:"detectedPatterns"`
	Decision         Decision  `json:"decision"`
	RiskScore        int       `json:"riskScore"`
	SessionID        string    `json:"sessionId"`
	IPAddress        string    `json:"ipAddress,omitempty"`
	UserAgent        string    `json:"userAgent,omitempty"`
}

// ErrInvalidFilter is returned for malformed queries
var ErrInvalidFilter = errors.New("invalid audit filter")

// Filter narrows a query. Zero values match everything. Results are newest first.
type Filter struct {
	UserID     string
	Department string
	Action     Action
	Decision   Decision
	Start      time.Time // inclusive
	End        time.Time // inclusive
	Limit      int
}

// Validate checks the filter for impossible or unknown values
func (f Filter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidFilter, f.Limit)
	}
	if f.Action != "" && !f.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidFilter, f.Action)
	}
	if f.Decision != "" && !f.Decision.Valid() {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidFilter, f.Decision)
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.Start.After(f.End) {
		return fmt.Errorf("%w: start is after end", ErrInvalidFilter)
	}
	return nil
}

// Matches reports whether e passes every non-limit condition of f
func (f Filter) Matches(e *Entry) bool {
	switch {
	case f.UserID != "" && e.UserID != f.UserID:
		return false
	case f.Department != "" && e.Department != f.Department:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Decision != "" && e.Decision != f.Decision:
		return false
	case !f.Start.IsZero() && e.Timestamp.Before(f.Start):
		return false
	case !f.End.IsZero() && e.Timestamp.After(f.End):
		return false
	}
	return true
}

// Store persists audit entries. Implementations are safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, error)
	Count(ctx context.Context) (int64, error)
	// DeleteBefore removes entries older than cutoff
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// TrimTo keeps only the newest max entries
	TrimTo(ctx context.Context, max int) (int64, error)
	Close() error
}
