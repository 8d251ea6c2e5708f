package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry // insertion order
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of entry
func (s *MemoryStore) Append(ctx context.Context, entry *Entry) error {
	e := *entry
	e.DetectedPatterns = append([]string(nil), entry.DetectedPatterns...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Query returns matching entries newest first; entries with equal timestamps come
// back most recently inserted first.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]Entry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.Matches(&s.entries[i]) {
			result = append(result, s.entries[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the number of stored entries
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// DeleteBefore removes entries older than cutoff
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := int64(len(s.entries) - len(kept))
	s.entries = kept
	return removed, nil
}

// TrimTo keeps only the newest max entries
func (s *MemoryStore) TrimTo(ctx context.Context, max int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max < 0 || len(s.entries) <= max {
		return 0, nil
	}

	order := make([]int, len(s.entries))
	for i := range order {
		order[i] = len(s.entries) - 1 - i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s.entries[order[i]].Timestamp.After(s.entries[order[j]].Timestamp)
	})

	keep := make(map[int]bool, max)
	for _, idx := range order[:max] {
		keep[idx] = true
	}

	kept := make([]Entry, 0, max)
	for i, e := range s.entries {
		if keep[i] {
			kept = append(kept, e)
		}
	}
	removed := int64(len(s.entries) - len(kept))
	s.entries = kept
	return removed, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
