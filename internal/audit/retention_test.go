package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPrunerPrune(t *testing.T) {
	tests := []struct {
		name      string
		config    RetentionConfig
		deleted   int64
		remaining []string
	}{
		{
			name:      "keep forever",
			config:    RetentionConfig{},
			deleted:   0,
			remaining: []string{"audit_004", "audit_003", "audit_002", "audit_001"},
		},
		{
			name:      "by age",
			config:    RetentionConfig{RetentionDays: 1},
			deleted:   2,
			remaining: []string{"audit_004", "audit_003"},
		},
		{
			name:      "by count",
			config:    RetentionConfig{MaxRecords: 3},
			deleted:   1,
			remaining: []string{"audit_004", "audit_003", "audit_002"},
		},
		{
			name:      "age then count",
			config:    RetentionConfig{RetentionDays: 1, MaxRecords: 1},
			deleted:   3,
			remaining: []string{"audit_004"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, 12 * time.Hour, time.Hour} {
				require.NoError(t, store.Append(ctx, testEntry(i+1, "u1", "Engineering", DecisionAllowed, baseTime.Add(-age))))
			}

			pruner := NewPruner(store, tc.config, zap.NewNop())
			pruner.now = func() time.Time { return baseTime }

			deleted, err := pruner.Prune(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.deleted, deleted)

			left, err := store.Query(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, tc.remaining, ids(left))
		})
	}
}

func TestSchedulerStart(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"daily", "0 3 * * *", true, false},
		{"hourly", "0 * * * *", true, false},
		{"empty schedule stays idle", "", false, false},
		{"invalid", "every tuesday", false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pruner := NewPruner(NewMemoryStore(), RetentionConfig{RetentionDays: 90, PruneSchedule: tc.schedule}, zap.NewNop())
			scheduler := NewScheduler(pruner)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := scheduler.Start(ctx)
			if tc.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantRunning, scheduler.IsRunning())

			if tc.wantRunning {
				next := scheduler.NextRun()
				require.NotNil(t, next)
				assert.True(t, next.After(time.Now()))
			} else {
				assert.Nil(t, scheduler.NextRun())
			}

			scheduler.Stop()
			assert.False(t, scheduler.IsRunning())
		})
	}
}
