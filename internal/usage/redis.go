package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/audit"
)

// RedisCounter stores each user's counters in a Redis hash
type RedisCounter struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
}

// NewRedisCounter connects to Redis and verifies the connection
func NewRedisCounter(config *Config, logger *zap.Logger) (*RedisCounter, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns
	if config.Timeout > 0 {
		opts.ReadTimeout = config.Timeout
		opts.WriteTimeout = config.Timeout
	}

	counter := &RedisCounter{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := counter.client.Ping(ctx).Err(); err != nil {
		counter.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Usage counter initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.String("key_prefix", config.KeyPrefix))

	return counter, nil
}

// Record increments the user's hash fields in a single pipeline
func (rc *RedisCounter) Record(ctx context.Context, userID string, decision audit.Decision) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	key := rc.key(userID)
	pipe := rc.client.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldTotal, 1)
	switch decision {
	case audit.DecisionBlocked:
		pipe.HIncrBy(ctx, key, fieldBlocked, 1)
	case audit.DecisionMasked:
		pipe.HIncrBy(ctx, key, fieldMasked, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		rc.logger.Error("Failed to record usage", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Get reads the user's hash; a missing key means zero usage
func (rc *RedisCounter) Get(ctx context.Context, userID string) (Usage, error) {
	if userID == "" {
		return Usage{}, ErrEmptyUserID
	}

	fields, err := rc.client.HGetAll(ctx, rc.key(userID)).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read usage: %w", err)
	}
	return parseUsage(userID, fields)
}

func (rc *RedisCounter) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	if err := rc.client.Del(ctx, rc.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (rc *RedisCounter) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

func (rc *RedisCounter) key(userID string) string {
	return rc.config.KeyPrefix + userID
}

func parseUsage(userID string, fields map[string]string) (Usage, error) {
	u := Usage{UserID: userID}
	targets := map[string]*int64{
		fieldTotal:   &u.TotalRequests,
		fieldBlocked: &u.BlockedRequests,
		fieldMasked:  &u.MaskedRequests,
	}
	for name, dst := range targets {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Usage{}, fmt.Errorf("invalid %s counter %q: %w", name, raw, err)
		}
		*dst = n
	}
	return u, nil
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	start := strings.Index(url, "://") + 3
	if start < 3 || start > at {
		start = 0
	}
	colon := strings.Index(url[start:at], ":")
	if colon < 0 {
		return url
	}
	return url[:start+colon+1] + "***" + url[at:]
}
