package shield

import (
	"errors"

	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/policy"
	"github.com/raaihank/ai-shield/internal/websocket"
)

var (
	// ErrRateLimited is returned when the user has exhausted their request budget
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidRequest is returned for requests missing a user, role or tool
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPersistence wraps audit or usage write failures. The outcome is still returned.
	ErrPersistence = errors.New("failed to persist evaluation")
)

// User is the authenticated caller as asserted by the identity layer
type User struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	Role       string `json:"role" validate:"required"`
	Department string `json:"department"`
}

// Request is one prompt submitted to an AI tool
type Request struct {
	RequestID string `json:"-"`
	User      User   `json:"user" validate:"required"`
	ToolID    string `json:"toolId" validate:"required"`
	ToolName  string `json:"toolName"`
	Text      string `json:"text" validate:"required"`
	Output    string `json:"output,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Outcome is the full result of evaluating a request
type Outcome struct {
	RequestID   string                     `json:"requestId"`
	Ceiling     detection.SensitivityLevel `json:"ceiling,omitempty"`
	Detection   detection.Result           `json:"detection"`
	Decision    policy.Decision            `json:"decision"`
	Forward     bool                       `json:"forward"`
	ForwardText string                     `json:"forwardText,omitempty"`
	AuditID     string                     `json:"auditId,omitempty"`
}

// Counters is a snapshot of the service's lifetime totals
type Counters struct {
	Evaluations int64 `json:"evaluations"`
	Allowed     int64 `json:"allowed"`
	Masked      int64 `json:"masked"`
	Blocked     int64 `json:"blocked"`
	RateLimited int64 `json:"rateLimited"`
}

// EventPublisher receives live events; *websocket.Hub implements it
type EventPublisher interface {
	BroadcastDetection(requestID string, ev websocket.DetectionEvent)
	BroadcastDecision(requestID string, ev websocket.DecisionEvent)
}

// toolActions maps tool ids to the audit action they represent
var toolActions = map[string]audit.Action{
	"text-gen":    audit.ActionTextGeneration,
	"code-assist": audit.ActionCodeAssistance,
	"summarizer":  audit.ActionDocumentSummarization,
	"analytics":   audit.ActionDataAnalysis,
	"image-gen":   audit.ActionImageGeneration,
	"translator":  audit.ActionTranslation,
}

// ActionForTool returns the audit action for toolID, text generation when unknown
func ActionForTool(toolID string) audit.Action {
	if a, ok := toolActions[toolID]; ok {
		return a
	}
	return audit.ActionTextGeneration
}
