package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RetentionConfig controls audit pruning
type RetentionConfig struct {
	// RetentionDays of 0 keeps entries forever
	RetentionDays int
	// MaxRecords of 0 means unlimited
	MaxRecords int
	// PruneSchedule is a standard cron expression; empty disables scheduling
	PruneSchedule string
}

// Pruner enforces retention on a Store
type Pruner struct {
	store  Store
	config RetentionConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewPruner creates a pruner for store
func NewPruner(store Store, config RetentionConfig, logger *zap.Logger) *Pruner {
	return &Pruner{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "audit.retention")),
		now:    time.Now,
	}
}

// Prune deletes entries older than the retention period, then the oldest entries
// beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
		p.logger.Debug("Pruned audit entries by age",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.store.TrimTo(ctx, p.config.MaxRecords)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
		p.logger.Debug("Pruned audit entries by count",
			zap.Int64("deleted", deleted),
			zap.Int("max_records", p.config.MaxRecords),
		)
	}

	if total > 0 {
		p.logger.Info("Audit pruning completed",
			zap.Int64("total_deleted", total),
			zap.Int("retention_days", p.config.RetentionDays),
			zap.Int("max_records", p.config.MaxRecords),
		)
	}

	return total, nil
}

// Scheduler runs a Pruner on its cron schedule
type Scheduler struct {
	pruner  *Pruner
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for pruner
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
	}
}

// Start schedules pruning. An empty schedule is not an error; the scheduler then stays idle.
// The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.pruner.config.PruneSchedule
	if schedule == "" {
		s.pruner.logger.Info("Prune schedule not configured, retention scheduler idle")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.pruner.logger.Info("Retention scheduler started",
		zap.String("schedule", schedule),
		zap.Int("retention_days", s.pruner.config.RetentionDays),
		zap.Int("max_records", s.pruner.config.MaxRecords),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.pruner.Prune(ctx); err != nil {
		s.pruner.logger.Error("Scheduled pruning failed", zap.Error(err))
	}
}

// Stop stops the scheduler and waits for a running prune to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.pruner.logger.Info("Retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or nil when idle
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
