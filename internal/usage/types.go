package usage

import (
	"context"
	"errors"
	"time"

	"github.com/raaihank/ai-shield/internal/audit"
)

// ErrEmptyUserID is returned when a counter operation has no user to key on
var ErrEmptyUserID = errors.New("usage: empty user id")

// Usage holds the request counters of one user
type Usage struct {
	UserID          string `json:"userId"`
	TotalRequests   int64  `json:"totalRequests"`
	BlockedRequests int64  `json:"blockedRequests"`
	MaskedRequests  int64  `json:"maskedRequests"`
}

// Counter tracks per-user request totals
type Counter interface {
	Record(ctx context.Context, userID string, decision audit.Decision) error
	Get(ctx context.Context, userID string) (Usage, error)
	Reset(ctx context.Context, userID string) error
	Close() error
}

// Config contains usage counter configuration
type Config struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// hash fields
const (
	fieldTotal   = "total"
	fieldBlocked = "blocked"
	fieldMasked  = "masked"
)
