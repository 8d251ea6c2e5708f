// Package shield runs the full evaluation pipeline for a prompt: access ceiling,
// rate limit, detection, decision, then audit, usage, metrics and live events.
package shield

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/access"
	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/logger"
	"github.com/raaihank/ai-shield/internal/metrics"
	"github.com/raaihank/ai-shield/internal/policy"
	"github.com/raaihank/ai-shield/internal/security"
	"github.com/raaihank/ai-shield/internal/usage"
	"github.com/raaihank/ai-shield/internal/websocket"
)

const reasonToolDenied = "Your role does not have access to %s."

// Deps are the collaborators a Service is built from. Limiter, Metrics and Events may be nil.
type Deps struct {
	Engine   *detection.Engine
	Access   *access.Table
	Recorder *audit.Recorder
	Usage    usage.Counter
	Limiter  *security.RateLimiter
	Metrics  *metrics.Collector
	Events   EventPublisher
	Logger   *logger.Logger
	AutoMask bool
}

// Service evaluates requests. It is safe for concurrent use.
type Service struct {
	engine   *detection.Engine
	access   atomic.Pointer[access.Table]
	recorder *audit.Recorder
	usage    usage.Counter
	limiter  *security.RateLimiter
	metrics  *metrics.Collector
	events   EventPublisher
	logger   *logger.Logger
	autoMask atomic.Bool

	evaluations atomic.Int64
	allowed     atomic.Int64
	masked      atomic.Int64
	blocked     atomic.Int64
	rateLimited atomic.Int64
}

// New creates a service
func New(deps Deps) (*Service, error) {
	if deps.Engine == nil || deps.Access == nil || deps.Recorder == nil || deps.Usage == nil {
		return nil, errors.New("shield: engine, access table, recorder and usage counter are required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	s := &Service{
		engine:   deps.Engine,
		recorder: deps.Recorder,
		usage:    deps.Usage,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		events:   deps.Events,
		logger:   deps.Logger.WithComponent("shield"),
	}
	s.access.Store(deps.Access)
	s.autoMask.Store(deps.AutoMask)
	return s, nil
}

// Evaluate runs the pipeline for req. On ErrPersistence the returned outcome is still the
// decision that was made; callers must not treat the request as allowed because of the error.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	if req.User.ID == "" || req.User.Role == "" || req.ToolID == "" {
		return nil, fmt.Errorf("%w: user id, role and tool id are required", ErrInvalidRequest)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.ToolName == "" {
		req.ToolName = req.ToolID
	}

	log := s.logger.WithRequestID(req.RequestID).WithUser(req.User.ID, req.User.Role)
	start := time.Now()

	ceiling, err := s.Access().Ceiling(access.Role(req.User.Role), req.ToolID)
	if errors.Is(err, access.ErrToolDenied) {
		return s.deny(ctx, req, log)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if s.limiter != nil && !s.limiter.Allow(req.User.ID) {
		s.rateLimited.Add(1)
		s.metrics.RecordRateLimited()
		log.Warn("Request rate limited", zap.String("tool_id", req.ToolID))
		return nil, ErrRateLimited
	}

	result := s.engine.Detect(req.Text)
	decision, err := policy.Decide(result, ceiling, s.autoMask.Load())
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		RequestID: req.RequestID,
		Ceiling:   ceiling,
		Detection: result,
		Decision:  decision,
	}
	outcome.ForwardText, outcome.Forward = policy.ForwardText(result, req.Text, decision)

	s.count(decision.Action)
	s.metrics.RecordEvaluation(string(decision.Action), string(result.SensitivityLevel), result.RiskScore, time.Since(start))
	s.metrics.RecordDetections(result.PatternTypes())
	log.LogDecision(string(decision.Action), string(result.SensitivityLevel), result.RiskScore, result.PatternTypes())

	output := ""
	if outcome.Forward {
		output = req.Output
	}
	persistErr := s.persist(ctx, req, ActionForTool(req.ToolID), &result, audit.DecisionFor(decision.Action), output, outcome, log)

	s.publish(req, outcome)
	return outcome, persistErr
}

// deny blocks a request for a tool the role may not use. The text is still scanned so
// the audit preview is masked.
func (s *Service) deny(ctx context.Context, req Request, log *logger.Logger) (*Outcome, error) {
	result := s.engine.Detect(req.Text)
	outcome := &Outcome{
		RequestID: req.RequestID,
		Detection: result,
		Decision: policy.Decision{
			Allowed: false,
			Action:  policy.ActionBlock,
			Reason:  fmt.Sprintf(reasonToolDenied, req.ToolName),
		},
	}

	s.count(policy.ActionBlock)
	s.metrics.RecordAccessDenied(req.User.Role, req.ToolID)
	log.Warn("Tool access denied", zap.String("tool_id", req.ToolID))

	persistErr := s.persist(ctx, req, audit.ActionAccessDenied, &result, audit.DecisionBlocked, "", outcome, log)
	s.publish(req, outcome)
	return outcome, persistErr
}

func (s *Service) persist(ctx context.Context, req Request, action audit.Action, result *detection.Result, decision audit.Decision, output string, outcome *Outcome, log *logger.Logger) error {
	var errs []error

	entry, err := s.recorder.Record(ctx, audit.Record{
		Actor:    actorFor(req),
		Action:   action,
		ToolID:   req.ToolID,
		ToolName: req.ToolName,
		Input:    req.Text,
		Output:   output,
		Result:   result,
		Decision: decision,
	})
	if err != nil {
		s.metrics.RecordStoreError("audit")
		log.Error("Failed to write audit entry", zap.Error(err))
		errs = append(errs, err)
	} else {
		outcome.AuditID = entry.ID
	}

	if err := s.usage.Record(ctx, req.User.ID, decision); err != nil {
		s.metrics.RecordStoreError("usage")
		log.Error("Failed to update usage counters", zap.Error(err))
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPersistence, errors.Join(errs...))
	}
	return nil
}

func (s *Service) publish(req Request, outcome *Outcome) {
	if s.events == nil {
		return
	}

	result := outcome.Detection
	if result.HasSensitiveData {
		s.events.BroadcastDetection(req.RequestID, websocket.DetectionEvent{
			UserID:           req.User.ID,
			ToolID:           req.ToolID,
			PatternTypes:     result.PatternTypes(),
			TotalMatches:     len(result.DetectedPatterns),
			RiskScore:        result.RiskScore,
			SensitivityLevel: string(result.SensitivityLevel),
		})
	}

	s.events.BroadcastDecision(req.RequestID, websocket.DecisionEvent{
		UserID:           req.User.ID,
		UserRole:         req.User.Role,
		Department:       req.User.Department,
		ToolID:           req.ToolID,
		Action:           string(outcome.Decision.Action),
		Reason:           outcome.Decision.Reason,
		SensitivityLevel: string(result.SensitivityLevel),
		Ceiling:          string(outcome.Ceiling),
		RiskScore:        result.RiskScore,
	})
}

// LogActivity records a session event such as login or logout
func (s *Service) LogActivity(ctx context.Context, user User, action audit.Action, sessionID string) (*audit.Entry, error) {
	if user.ID == "" || user.Role == "" {
		return nil, fmt.Errorf("%w: user id and role are required", ErrInvalidRequest)
	}
	if action != audit.ActionLogin && action != audit.ActionLogout {
		return nil, fmt.Errorf("%w: unsupported activity %q", ErrInvalidRequest, action)
	}

	entry, err := s.recorder.Record(ctx, audit.Record{
		Actor:    actorFor(Request{User: user, SessionID: sessionID}),
		Action:   action,
		Decision: audit.DecisionAllowed,
	})
	if err != nil {
		s.metrics.RecordStoreError("audit")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return entry, nil
}

func (s *Service) count(action policy.Action) {
	s.evaluations.Add(1)
	switch action {
	case policy.ActionAllow:
		s.allowed.Add(1)
	case policy.ActionMask:
		s.masked.Add(1)
	default:
		s.blocked.Add(1)
	}
}

// Counters returns lifetime totals since the service started
func (s *Service) Counters() Counters {
	return Counters{
		Evaluations: s.evaluations.Load(),
		Allowed:     s.allowed.Load(),
		Masked:      s.masked.Load(),
		Blocked:     s.blocked.Load(),
		RateLimited: s.rateLimited.Load(),
	}
}

// Engine returns the detection engine
func (s *Service) Engine() *detection.Engine { return s.engine }

// Access returns the current role table
func (s *Service) Access() *access.Table { return s.access.Load() }

// Store returns the audit store
func (s *Service) Store() audit.Store { return s.recorder.Store() }

// Usage returns the usage counter
func (s *Service) Usage() usage.Counter { return s.usage }

// AutoMask reports whether masking is offered instead of blocking
func (s *Service) AutoMask() bool { return s.autoMask.Load() }

// SetAutoMask switches masking on or off, e.g. after a config reload
func (s *Service) SetAutoMask(enabled bool) {
	if s.autoMask.Swap(enabled) != enabled {
		s.logger.Info("Auto-mask setting changed", zap.Bool("auto_mask", enabled))
	}
}

// SetAccess swaps the role table, e.g. after the access file changed
func (s *Service) SetAccess(table *access.Table) {
	if table != nil {
		s.access.Store(table)
		s.logger.Info("Access table reloaded", zap.Int("roles", len(table.Roles())))
	}
}

func actorFor(req Request) audit.Actor {
	return audit.Actor{
		ID:         req.User.ID,
		Name:       req.User.Name,
		Role:       req.User.Role,
		Department: req.User.Department,
		SessionID:  req.SessionID,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}
}
