package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLStore(context.Background(), SQLConfig{Driver: "sqlite", DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newMemoryStore(t *testing.T) Store {
	return NewMemoryStore()
}

func storeBackends() map[string]func(*testing.T) Store {
	return map[string]func(*testing.T) Store{
		"memory": newMemoryStore,
		"sqlite": newSQLiteStore,
	}
}

func testEntry(i int, user, dept string, decision Decision, at time.Time) *Entry {
	return &Entry{
		ID:               fmt.Sprintf("audit_%03d", i),
		Timestamp:        at,
		UserID:           user,
		UserName:         "User " + user,
		UserRole:         "employee",
		Department:       dept,
		Action:           ActionTextGeneration,
		ToolID:           "text-gen",
		ToolName:         "Text Generation",
		InputPreview:     "preview",
		SensitivityLevel: "internal",
		DetectedPatterns: []string{"Email Address"},
		Decision:         decision,
		RiskScore:        10 * i,
		SessionID:        "session_x",
	}
}

func seed(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	entries := []*Entry{
		testEntry(1, "u1", "Engineering", DecisionAllowed, baseTime.Add(-4*time.Hour)),
		testEntry(2, "u2", "Sales", DecisionBlocked, baseTime.Add(-3*time.Hour)),
		testEntry(3, "u1", "Engineering", DecisionMasked, baseTime.Add(-2*time.Hour)),
		testEntry(4, "u3", "HR", DecisionAllowed, baseTime.Add(-1*time.Hour)),
	}
	entries[3].Action = ActionTranslation
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestStoreQuery(t *testing.T) {
	for name, newStore := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			seed(t, store)
			ctx := context.Background()

			tests := []struct {
				name   string
				filter Filter
				want   []string
			}{
				{"all newest first", Filter{}, []string{"audit_004", "audit_003", "audit_002", "audit_001"}},
				{"by user", Filter{UserID: "u1"}, []string{"audit_003", "audit_001"}},
				{"by department", Filter{Department: "Sales"}, []string{"audit_002"}},
				{"by action", Filter{Action: ActionTranslation}, []string{"audit_004"}},
				{"by decision", Filter{Decision: DecisionAllowed}, []string{"audit_004", "audit_001"}},
				{"time range inclusive", Filter{Start: baseTime.Add(-3 * time.Hour), End: baseTime.Add(-2 * time.Hour)}, []string{"audit_003", "audit_002"}},
				{"limit", Filter{Limit: 2}, []string{"audit_004", "audit_003"}},
				{"no match", Filter{UserID: "nobody"}, []string{}},
			}

			for _, tc := range tests {
				t.Run(tc.name, func(t *testing.T) {
					got, err := store.Query(ctx, tc.filter)
					require.NoError(t, err)
					assert.Equal(t, tc.want, ids(got))
				})
			}
		})
	}
}

func TestStoreRoundTripsFields(t *testing.T) {
	for name, newStore := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			in := testEntry(7, "u9", "Finance", DecisionMasked, baseTime)
			in.OutputPreview = "out"
			in.DetectedPatterns = []string{"Social Security Number", "Email Address"}
			in.IPAddress = "10.0.0.1"
			require.NoError(t, store.Append(ctx, in))

			got, err := store.Query(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, got, 1)

			out := got[0]
			assert.True(t, in.Timestamp.Equal(out.Timestamp))
			assert.Equal(t, in.DetectedPatterns, out.DetectedPatterns)
			assert.Equal(t, in.OutputPreview, out.OutputPreview)
			assert.Equal(t, in.Decision, out.Decision)
			assert.Equal(t, in.RiskScore, out.RiskScore)
			assert.Equal(t, in.IPAddress, out.IPAddress)
		})
	}
}

func TestStoreInvalidFilter(t *testing.T) {
	for name, newStore := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			for _, f := range []Filter{
				{Limit: -1},
				{Action: "dancing"},
				{Decision: "maybe"},
				{Start: baseTime, End: baseTime.Add(-time.Hour)},
			} {
				_, err := store.Query(ctx, f)
				assert.ErrorIs(t, err, ErrInvalidFilter)
			}
		})
	}
}

func TestStoreDeleteAndTrim(t *testing.T) {
	for name, newStore := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			seed(t, store)
			ctx := context.Background()

			deleted, err := store.DeleteBefore(ctx, baseTime.Add(-3*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(1), deleted)

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)

			trimmed, err := store.TrimTo(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(2), trimmed)

			left, err := store.Query(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"audit_004"}, ids(left))

			trimmed, err = store.TrimTo(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(0), trimmed)
		})
	}
}

func TestNewSQLStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLStore(context.Background(), SQLConfig{Driver: "mysql", DSN: "x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://shield:***@db:5432/audit", maskDSN("postgres://shield:s3cret@db:5432/audit"))
	assert.Equal(t, "postgres://shield@db/audit", maskDSN("postgres://shield@db/audit"))
	assert.Equal(t, ":memory:", maskDSN(":memory:"))
}
