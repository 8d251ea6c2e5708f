package shield

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/access"
	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/config"
	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/logger"
	"github.com/raaihank/ai-shield/internal/metrics"
	"github.com/raaihank/ai-shield/internal/policy"
	"github.com/raaihank/ai-shield/internal/security"
	"github.com/raaihank/ai-shield/internal/usage"
	"github.com/raaihank/ai-shield/internal/websocket"
)

type recordingPublisher struct {
	mu         sync.Mutex
	detections []websocket.DetectionEvent
	decisions  []websocket.DecisionEvent
}

func (p *recordingPublisher) BroadcastDetection(_ string, ev websocket.DetectionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detections = append(p.detections, ev)
}

func (p *recordingPublisher) BroadcastDecision(_ string, ev websocket.DecisionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions = append(p.decisions, ev)
}

type failingStore struct {
	audit.Store
}

func (failingStore) Append(context.Context, *audit.Entry) error {
	return errors.New("disk full")
}

type fixture struct {
	svc    *Service
	store  audit.Store
	usage  *usage.MemoryCounter
	events *recordingPublisher
}

func newFixture(t *testing.T, autoMask bool, limiter *security.RateLimiter, store audit.Store) fixture {
	t.Helper()
	engine, err := detection.New(config.DetectionConfig{Detectors: []string{"all"}}, logger.NewNop())
	require.NoError(t, err)
	table, err := access.Default()
	require.NoError(t, err)

	if store == nil {
		store = audit.NewMemoryStore()
	}
	counter := usage.NewMemoryCounter()
	events := &recordingPublisher{}

	svc, err := New(Deps{
		Engine:   engine,
		Access:   table,
		Recorder: audit.NewRecorder(store, 0, zap.NewNop()),
		Usage:    counter,
		Limiter:  limiter,
		Metrics:  metrics.NewCollector(config.MetricsConfig{Enabled: true}, prometheus.NewRegistry()),
		Events:   events,
		AutoMask: autoMask,
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, usage: counter, events: events}
}

func employeeRequest(toolID, text string) Request {
	return Request{
		User:   User{ID: "u-emp", Name: "Employee User", Role: "employee", Department: "Engineering"},
		ToolID: toolID,
		Text:   text,
	}
}

func TestEvaluateMasksWhenAboveCeiling(t *testing.T) {
	f := newFixture(t, true, nil, nil)
	ctx := context.Background()

	req := employeeRequest("text-gen", "My SSN is 123-45-6789")
	req.Output = "Sure, noted."
	out, err := f.svc.Evaluate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, detection.LevelInternal, out.Ceiling)
	assert.Equal(t, detection.LevelRestricted, out.Detection.SensitivityLevel)
	assert.Equal(t, policy.ActionMask, out.Decision.Action)
	assert.True(t, out.Forward)
	assert.Equal(t, "My SSN is XXX-XX-6789", out.ForwardText)
	assert.NotEmpty(t, out.RequestID)
	assert.NotEmpty(t, out.AuditID)

	entries, err := f.store.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.DecisionMasked, entries[0].Decision)
	assert.Equal(t, audit.ActionTextGeneration, entries[0].Action)
	assert.Equal(t, "My SSN is XXX-XX-6789", entries[0].InputPreview)
	assert.Equal(t, "Sure, noted.", entries[0].OutputPreview)
	assert.Equal(t, "text-gen", entries[0].ToolName)

	u, err := f.usage.Get(ctx, "u-emp")
	require.NoError(t, err)
	assert.Equal(t, usage.Usage{UserID: "u-emp", TotalRequests: 1, MaskedRequests: 1}, u)

	require.Len(t, f.events.detections, 1)
	assert.Equal(t, []string{"Social Security Number"}, f.events.detections[0].PatternTypes)
	require.Len(t, f.events.decisions, 1)
	assert.Equal(t, "mask", f.events.decisions[0].Action)
	assert.Equal(t, "internal", f.events.decisions[0].Ceiling)

	assert.Equal(t, Counters{Evaluations: 1, Masked: 1}, f.svc.Counters())
}

func TestEvaluateBlocksWithoutAutoMask(t *testing.T) {
	f := newFixture(t, false, nil, nil)
	ctx := context.Background()

	req := employeeRequest("text-gen", "My SSN is 123-45-6789")
	req.Output = "should not be stored"
	out, err := f.svc.Evaluate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, policy.ActionBlock, out.Decision.Action)
	assert.False(t, out.Decision.Allowed)
	assert.Equal(t, "Request contains restricted data. Your access level allows up to internal data only.", out.Decision.Reason)
	assert.False(t, out.Forward)
	assert.Empty(t, out.ForwardText)

	entries, err := f.store.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.DecisionBlocked, entries[0].Decision)
	assert.Empty(t, entries[0].OutputPreview)
	assert.NotContains(t, entries[0].InputPreview, "123-45-6789")

	u, err := f.usage.Get(ctx, "u-emp")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.BlockedRequests)
}

func TestEvaluateAllowsCleanText(t *testing.T) {
	f := newFixture(t, true, nil, nil)

	out, err := f.svc.Evaluate(context.Background(), employeeRequest("summarizer", "Summarize the attached article"))
	require.NoError(t, err)

	assert.Equal(t, policy.ActionAllow, out.Decision.Action)
	assert.Equal(t, "Summarize the attached article", out.ForwardText)
	assert.Empty(t, f.events.detections)
	require.Len(t, f.events.decisions, 1)

	entries, err := f.store.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, audit.ActionDocumentSummarization, entries[0].Action)
}

func TestEvaluateToolDenied(t *testing.T) {
	f := newFixture(t, true, nil, nil)
	ctx := context.Background()

	req := employeeRequest("code-assist", "refactor this, key 123-45-6789")
	req.ToolName = "Code Assistant"
	out, err := f.svc.Evaluate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, policy.ActionBlock, out.Decision.Action)
	assert.Equal(t, "Your role does not have access to Code Assistant.", out.Decision.Reason)
	assert.False(t, out.Forward)
	assert.Empty(t, out.Ceiling)

	entries, err := f.store.Query(ctx, audit.Filter{Action: audit.ActionAccessDenied})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.DecisionBlocked, entries[0].Decision)
	assert.NotContains(t, entries[0].InputPreview, "123-45-6789")
}

func TestEvaluateUnlistedToolGetsPublicCeiling(t *testing.T) {
	f := newFixture(t, false, nil, nil)

	out, err := f.svc.Evaluate(context.Background(), employeeRequest("unknown-tool", "Contact jane@example.com"))
	require.NoError(t, err)

	assert.Equal(t, detection.LevelPublic, out.Ceiling)
	assert.Equal(t, policy.ActionBlock, out.Decision.Action)
}

func TestEvaluateInvalidRequests(t *testing.T) {
	f := newFixture(t, true, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"missing user", Request{User: User{Role: "employee"}, ToolID: "text-gen", Text: "hi"}},
		{"missing role", Request{User: User{ID: "u1"}, ToolID: "text-gen", Text: "hi"}},
		{"missing tool", Request{User: User{ID: "u1", Role: "employee"}, Text: "hi"}},
		{"unknown role", Request{User: User{ID: "u1", Role: "intern"}, ToolID: "text-gen", Text: "hi"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Evaluate(ctx, tc.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestEvaluateRateLimited(t *testing.T) {
	limiter := security.NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, Burst: 1})
	f := newFixture(t, true, limiter, nil)
	ctx := context.Background()

	_, err := f.svc.Evaluate(ctx, employeeRequest("text-gen", "hello"))
	require.NoError(t, err)

	_, err = f.svc.Evaluate(ctx, employeeRequest("text-gen", "hello again"))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int64(1), f.svc.Counters().RateLimited)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEvaluatePersistenceFailureKeepsDecision(t *testing.T) {
	f := newFixture(t, false, nil, failingStore{audit.NewMemoryStore()})

	out, err := f.svc.Evaluate(context.Background(), employeeRequest("text-gen", "My SSN is 123-45-6789"))
	assert.ErrorIs(t, err, ErrPersistence)
	require.NotNil(t, out)
	assert.Equal(t, policy.ActionBlock, out.Decision.Action)
	assert.Empty(t, out.AuditID)

	u, err := f.usage.Get(context.Background(), "u-emp")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.BlockedRequests)
}

func TestSetAutoMask(t *testing.T) {
	f := newFixture(t, false, nil, nil)
	f.svc.SetAutoMask(true)
	assert.True(t, f.svc.AutoMask())

	out, err := f.svc.Evaluate(context.Background(), employeeRequest("text-gen", "My SSN is 123-45-6789"))
	require.NoError(t, err)
	assert.Equal(t, policy.ActionMask, out.Decision.Action)
}

func TestSetAccess(t *testing.T) {
	f := newFixture(t, false, nil, nil)

	table, err := access.Parse([]byte(`
roles:
  employee:
    permissions: [use_ai_tools]
    tools:
      - {tool_id: text-gen, tool_name: Text Generation, allowed: true, max_sensitivity_level: restricted}
`))
	require.NoError(t, err)
	f.svc.SetAccess(table)

	out, err := f.svc.Evaluate(context.Background(), employeeRequest("text-gen", "My SSN is 123-45-6789"))
	require.NoError(t, err)
	assert.Equal(t, policy.ActionAllow, out.Decision.Action)
}

func TestLogActivity(t *testing.T) {
	f := newFixture(t, true, nil, nil)
	ctx := context.Background()
	user := User{ID: "u1", Name: "Admin", Role: "admin"}

	entry, err := f.svc.LogActivity(ctx, user, audit.ActionLogin, "session_abc")
	require.NoError(t, err)
	assert.Equal(t, audit.ActionLogin, entry.Action)
	assert.Equal(t, "session_abc", entry.SessionID)

	_, err = f.svc.LogActivity(ctx, user, audit.ActionTranslation, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestActionForTool(t *testing.T) {
	tests := map[string]audit.Action{
		"text-gen":    audit.ActionTextGeneration,
		"code-assist": audit.ActionCodeAssistance,
		"summarizer":  audit.ActionDocumentSummarization,
		"analytics":   audit.ActionDataAnalysis,
		"image-gen":   audit.ActionImageGeneration,
		"translator":  audit.ActionTranslation,
		"whatever":    audit.ActionTextGeneration,
	}
	for tool, want := range tests {
		assert.Equal(t, want, ActionForTool(tool), tool)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
