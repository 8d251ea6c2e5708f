package usage

import (
	"context"
	"sync"

	"github.com/raaihank/ai-shield/internal/audit"
)

// MemoryCounter keeps counters in process memory
type MemoryCounter struct {
	mu     sync.RWMutex
	counts map[string]*Usage
}

// NewMemoryCounter creates an empty in-memory counter
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]*Usage)}
}

// Record bumps the total and, for blocked or masked decisions, the matching counter
func (m *MemoryCounter) Record(_ context.Context, userID string, decision audit.Decision) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.counts[userID]
	if !ok {
		u = &Usage{UserID: userID}
		m.counts[userID] = u
	}
	u.TotalRequests++
	switch decision {
	case audit.DecisionBlocked:
		u.BlockedRequests++
	case audit.DecisionMasked:
		u.MaskedRequests++
	}
	return nil
}

// Get returns a copy of the user's counters; unknown users have zero usage
func (m *MemoryCounter) Get(_ context.Context, userID string) (Usage, error) {
	if userID == "" {
		return Usage{}, ErrEmptyUserID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.counts[userID]; ok {
		return *u, nil
	}
	return Usage{UserID: userID}, nil
}

func (m *MemoryCounter) Reset(_ context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	m.mu.Lock()
	delete(m.counts, userID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCounter) Close() error {
	return nil
}
