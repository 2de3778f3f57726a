package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces limiter keys in Redis.
const DefaultPrefix = "grl:"

// Config holds limiter tuning parameters.
type Config struct {
	Max    int
	Window time.Duration
}

// DefaultConfig allows five attempts per fifteen minutes.
func DefaultConfig() Config {
	return Config{Max: 5, Window: 15 * time.Minute}
}

// Validate rejects non-positive budgets.
func (c Config) Validate() error {
	if c.Max <= 0 {
		return errors.New("rate: Max must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("rate: Window must be > 0")
	}
	return nil
}

// RedisLimiter is a rolling-window limiter shared across processes through
// Redis sorted sets.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a [RedisLimiter]. An empty prefix means
// [DefaultPrefix].
func NewRedisLimiter(client redis.UniversalClient, cfg Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisLimiter{redis: client, config: cfg, prefix: prefix, now: time.Now}
}

// Allow records an attempt for key and reports whether it fits the budget.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	now := l.now()
	nowMS := now.UnixMilli()
	floor := nowMS - l.config.Window.Milliseconds()
	redisKey := l.prefix + key

	var card *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(floor, 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMS), Member: uuid.NewString()})
		// only the newest Max+1 attempts can change the outcome
		pipe.ZRemRangeByRank(ctx, redisKey, 0, int64(-(l.config.Max + 2)))
		card = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.config.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if card.Val() > int64(l.config.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset forgets every attempt recorded for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// MemoryLimiter is the in-process equivalent of [RedisLimiter]. Each key
// keeps at most Max+1 timestamps, and keys idle for a whole window are
// swept once per window.
type MemoryLimiter struct {
	mu        sync.Mutex
	config    Config
	attempts  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter creates a [MemoryLimiter].
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{config: cfg, attempts: make(map[string][]time.Time), now: time.Now}
}

// Allow records an attempt for key and reports whether it fits the budget.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := l.now()
	floor := now.Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.config.Window {
		l.sweep(floor)
		l.lastSweep = now
	}

	kept := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(floor) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	if limit := l.config.Max + 1; len(kept) > limit {
		kept = append(kept[:0], kept[len(kept)-limit:]...)
	}
	l.attempts[key] = kept

	if len(kept) > l.config.Max {
		return ErrRateLimited
	}
	return nil
}

// sweep drops keys whose newest attempt is at or before floor. Callers hold mu.
func (l *MemoryLimiter) sweep(floor time.Time) {
	for key, at := range l.attempts {
		if len(at) == 0 || !at[len(at)-1].After(floor) {
			delete(l.attempts, key)
		}
	}
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Reset forgets every attempt recorded for key.
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.attempts, key)
	l.mu.Unlock()
	return nil
}
