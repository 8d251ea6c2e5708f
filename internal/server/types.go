package server

import (
	"time"

	"github.com/raaihank/ai-shield/internal/access"
	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/policy"
	"github.com/raaihank/ai-shield/internal/shield"
)

type detectRequest struct {
	Text string `json:"text" validate:"max=524288"`
}

type decideRequest struct {
	Text     string `json:"text" validate:"max=524288"`
	Ceiling  string `json:"ceiling" validate:"required,sensitivity_level"`
	AutoMask *bool  `json:"autoMask,omitempty"`
}

type decideResponse struct {
	Detection detection.Result `json:"detection"`
	Decision  policy.Decision  `json:"decision"`
}

type evaluateRequest struct {
	User      shield.User `json:"user"`
	ToolID    string      `json:"toolId" validate:"required,max=64"`
	ToolName  string      `json:"toolName" validate:"max=128"`
	Text      string      `json:"text" validate:"max=524288"`
	Output    string      `json:"output" validate:"max=524288"`
	SessionID string      `json:"sessionId" validate:"max=128"`
}

type activityRequest struct {
	User      shield.User `json:"user"`
	Action    string      `json:"action" validate:"required,oneof=login logout"`
	SessionID string      `json:"sessionId" validate:"max=128"`
}

type accessResponse struct {
	Role        access.Role         `json:"role"`
	Permissions []string            `json:"permissions"`
	Tools       []access.ToolAccess `json:"tools"`
}

type auditResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type infoResponse struct {
	Name             string          `json:"name"`
	Version          string          `json:"version"`
	Uptime           string          `json:"uptime"`
	EnabledDetectors []string        `json:"enabledDetectors"`
	AutoMask         bool            `json:"autoMask"`
	AuditBackend     string          `json:"auditBackend"`
	UsageBackend     string          `json:"usageBackend"`
	RateLimit        bool            `json:"rateLimit"`
	WebSocket        bool            `json:"websocket"`
	Counters         shield.Counters `json:"counters"`
}

type errorResponse struct {
	Error     string            `json:"error"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Decision  *policy.Decision  `json:"decision,omitempty"`
}
