package audit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

const topUserLimit = 10

// DailyCount is one day of the weekly breakdown
type DailyCount struct {
	Date    string `json:"date"` // short weekday, e.g. "Mon"
	Allowed int    `json:"allowed"`
	Masked  int    `json:"masked"`
	Blocked int    `json:"blocked"`
}

// UserUsage summarises one user's week
type UserUsage struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Count      int    `json:"count"`
	Blocked    int    `json:"blocked"`
}

// Stats is the dashboard summary of the last seven days
type Stats struct {
	TotalRequests    int            `json:"totalRequests"`
	AllowedRequests  int            `json:"allowedRequests"`
	MaskedRequests   int            `json:"maskedRequests"`
	BlockedRequests  int            `json:"blockedRequests"`
	TodayRequests    int            `json:"todayRequests"`
	TodayBlocked     int            `json:"todayBlocked"`
	DepartmentUsage  map[string]int `json:"departmentUsage"`
	ToolUsage        map[string]int `json:"toolUsage"`
	DailyBreakdown   []DailyCount   `json:"dailyBreakdown"`
	TopUsers         []UserUsage    `json:"topUsers"`
	AverageRiskScore int            `json:"averageRiskScore"`
}

// startOfDay returns local midnight of t in t's location
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart is the inclusive lower bound of the stats window for now
func WeekStart(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -7)
}

// ComputeStats summarises entries relative to now. Entries outside the seven day window are ignored.
func ComputeStats(entries []Entry, now time.Time) Stats {
	today := startOfDay(now)
	weekAgo := WeekStart(now)

	stats := Stats{
		DepartmentUsage: make(map[string]int),
		ToolUsage:       make(map[string]int),
		DailyBreakdown:  make([]DailyCount, 7),
		TopUsers:        make([]UserUsage, 0),
	}

	days := make([]time.Time, 7)
	for i := 0; i < 7; i++ {
		days[i] = today.AddDate(0, 0, i-6)
		stats.DailyBreakdown[i].Date = days[i].Format("Mon")
	}

	users := make(map[string]*UserUsage)
	var order []string
	riskSum := 0

	for i := range entries {
		e := &entries[i]
		if e.Timestamp.Before(weekAgo) {
			continue
		}

		stats.TotalRequests++
		riskSum += e.RiskScore
		switch e.Decision {
		case DecisionAllowed:
			stats.AllowedRequests++
		case DecisionMasked:
			stats.MaskedRequests++
		case DecisionBlocked:
			stats.BlockedRequests++
		}

		if !e.Timestamp.Before(today) {
			stats.TodayRequests++
			if e.Decision == DecisionBlocked {
				stats.TodayBlocked++
			}
		}

		stats.DepartmentUsage[e.Department]++
		stats.ToolUsage[e.ToolName]++

		for d := range days {
			next := days[d].AddDate(0, 0, 1)
			if e.Timestamp.Before(days[d]) || !e.Timestamp.Before(next) {
				continue
			}
			switch e.Decision {
			case DecisionAllowed:
				stats.DailyBreakdown[d].Allowed++
			case DecisionMasked:
				stats.DailyBreakdown[d].Masked++
			case DecisionBlocked:
				stats.DailyBreakdown[d].Blocked++
			}
			break
		}

		u, ok := users[e.UserID]
		if !ok {
			u = &UserUsage{UserID: e.UserID, Name: e.UserName, Department: e.Department}
			users[e.UserID] = u
			order = append(order, e.UserID)
		}
		u.Count++
		if e.Decision == DecisionBlocked {
			u.Blocked++
		}
	}

	for _, id := range order {
		stats.TopUsers = append(stats.TopUsers, *users[id])
	}
	sort.SliceStable(stats.TopUsers, func(i, j int) bool {
		return stats.TopUsers[i].Count > stats.TopUsers[j].Count
	})
	if len(stats.TopUsers) > topUserLimit {
		stats.TopUsers = stats.TopUsers[:topUserLimit]
	}

	if stats.TotalRequests > 0 {
		stats.AverageRiskScore = int(math.Round(float64(riskSum) / float64(stats.TotalRequests)))
	}

	return stats
}

// WeeklyStats loads the last seven days from store and summarises them
func WeeklyStats(ctx context.Context, store Store, now time.Time) (Stats, error) {
	entries, err := store.Query(ctx, Filter{Start: WeekStart(now)})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load audit entries for stats: %w", err)
	}
	return ComputeStats(entries, now), nil
}
