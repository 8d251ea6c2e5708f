package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statsEntries() []Entry {
	mk := func(user, dept, tool string, d Decision, risk int, at time.Time) Entry {
		return Entry{UserID: user, UserName: "User " + user, Department: dept, ToolName: tool, Decision: d, RiskScore: risk, Timestamp: at}
	}
	return []Entry{
		mk("u1", "Engineering", "Text Generation", DecisionBlocked, 60, baseTime.Add(-time.Hour)),
		mk("u2", "Sales", "Text Generation", DecisionAllowed, 0, baseTime.Add(-2*time.Hour)),
		mk("u1", "Engineering", "Code Assistant", DecisionMasked, 30, time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)),
		mk("u3", "HR", "Text Generation", DecisionAllowed, 5, time.Date(2026, 10, 7, 23, 0, 0, 0, time.UTC)),
		mk("u4", "HR", "Text Generation", DecisionBlocked, 90, time.Date(2026, 10, 6, 12, 0, 0, 0, time.UTC)),
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(statsEntries(), baseTime)

	assert.Equal(t, 4, stats.TotalRequests)
	assert.Equal(t, 2, stats.AllowedRequests)
	assert.Equal(t, 1, stats.MaskedRequests)
	assert.Equal(t, 1, stats.BlockedRequests)
	assert.Equal(t, 2, stats.TodayRequests)
	assert.Equal(t, 1, stats.TodayBlocked)
	assert.Equal(t, map[string]int{"Engineering": 2, "Sales": 1, "HR": 1}, stats.DepartmentUsage)
	assert.Equal(t, map[string]int{"Text Generation": 3, "Code Assistant": 1}, stats.ToolUsage)
	assert.Equal(t, 24, stats.AverageRiskScore)

	require.Len(t, stats.DailyBreakdown, 7)
	labels := make([]string, 7)
	for i, d := range stats.DailyBreakdown {
		labels[i] = d.Date
	}
	assert.Equal(t, []string{"Thu", "Fri", "Sat", "Sun", "Mon", "Tue", "Wed"}, labels)
	assert.Equal(t, DailyCount{Date: "Wed", Allowed: 1, Blocked: 1}, stats.DailyBreakdown[6])
	assert.Equal(t, DailyCount{Date: "Mon", Masked: 1}, stats.DailyBreakdown[4])
	assert.Equal(t, DailyCount{Date: "Thu"}, stats.DailyBreakdown[0])

	require.Len(t, stats.TopUsers, 3)
	assert.Equal(t, UserUsage{UserID: "u1", Name: "User u1", Department: "Engineering", Count: 2, Blocked: 1}, stats.TopUsers[0])
	assert.Equal(t, "u2", stats.TopUsers[1].UserID)
	assert.Equal(t, "u3", stats.TopUsers[2].UserID)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil, baseTime)

	assert.Equal(t, 0, stats.TotalRequests)
	assert.Equal(t, 0, stats.AverageRiskScore)
	assert.Len(t, stats.DailyBreakdown, 7)
	assert.NotNil(t, stats.TopUsers)
	assert.Empty(t, stats.TopUsers)
}

func TestComputeStatsTopUsersLimit(t *testing.T) {
	var entries []Entry
	for i := 0; i < 15; i++ {
		for j := 0; j <= i; j++ {
			entries = append(entries, Entry{UserID: string(rune('a' + i)), Timestamp: baseTime, Decision: DecisionAllowed})
		}
	}

	stats := ComputeStats(entries, baseTime)
	require.Len(t, stats.TopUsers, 10)
	assert.Equal(t, "o", stats.TopUsers[0].UserID)
	assert.Equal(t, 15, stats.TopUsers[0].Count)
	assert.Equal(t, 6, stats.TopUsers[9].Count)
}

func TestWeeklyStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, e := range statsEntries() {
		e := e
		require.NoError(t, store.Append(ctx, &e))
	}

	stats, err := WeeklyStats(ctx, store, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRequests)
}
