package logic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/surfacekit/internal/db"
)

// ImpressionLedger is the set of accounting keys already reported as viewed.
// TryMark is an atomic compare-and-insert: exactly one caller wins per key
// until the ledger is reset.
type ImpressionLedger interface {
	TryMark(ctx context.Context, key string) bool
	Has(ctx context.Context, key string) bool
	Reset(ctx context.Context)
}

// ImpressionKey builds the accounting key for a campaign and optional
// sub-element. Sub-element keys are scoped to their campaign so two campaigns
// sharing a sub-element id never collide.
func ImpressionKey(campaignID, subElementID string) string {
	if subElementID == "" {
		return campaignID
	}
	return campaignID + "/" + subElementID
}

// MemoryLedger keeps the ledger in process memory.
type MemoryLedger struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{keys: make(map[string]struct{})}
}

func (l *MemoryLedger) TryMark(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false
	}
	l.keys[key] = struct{}{}
	return true
}

func (l *MemoryLedger) Has(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok
}

func (l *MemoryLedger) Reset(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = make(map[string]struct{})
}

// Len returns the number of marked keys.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// RedisLedger keeps the ledger in Redis so several engine processes serving
// the same session share it. Keys live under a per-session generation that is
// read from Redis on every call; Reset bumps the generation instead of deleting
// keys, and old generations expire by TTL. When Redis is unreachable the
// ledger falls back to process memory so duplicates inside this process are
// still suppressed.
type RedisLedger struct {
	store   *db.RedisStore
	session string
	ttl     time.Duration
	logger  *zap.Logger

	// gen is the last generation seen in Redis
	gen atomic.Int64

	mu          sync.Mutex
	fallback    *MemoryLedger
	fallbackGen int64
}

// NewRedisLedger creates a ledger for session and loads its current generation.
func NewRedisLedger(ctx context.Context, store *db.RedisStore, session string, ttl time.Duration, logger *zap.Logger) (*RedisLedger, error) {
	if store == nil || store.Client == nil {
		return nil, ErrNilRedisStore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RedisLedger{
		store:    store,
		session:  session,
		ttl:      ttl,
		fallback: NewMemoryLedger(),
		logger:   logger.Named("ledger"),
	}
	gen, err := store.Generation(ctx, l.generationKey())
	if err != nil {
		return nil, fmt.Errorf("load ledger generation: %w", err)
	}
	l.gen.Store(gen)
	l.fallbackGen = gen
	return l, nil
}

func (l *RedisLedger) prefix() string {
	return "ledger:" + l.session
}

func (l *RedisLedger) generationKey() string {
	return l.prefix() + ":gen"
}

func (l *RedisLedger) entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", l.prefix(), gen, key)
}

// memory returns the fallback ledger, emptied if another process moved the
// session to a newer generation.
func (l *RedisLedger) memory(gen int64) *MemoryLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen > l.fallbackGen {
		l.fallback = NewMemoryLedger()
		l.fallbackGen = gen
	}
	return l.fallback
}

func (l *RedisLedger) observe(gen int64) {
	for {
		cur := l.gen.Load()
		if gen <= cur || l.gen.CompareAndSwap(cur, gen) {
			return
		}
	}
}

func (l *RedisLedger) TryMark(ctx context.Context, key string) bool {
	gen, ok, err := l.store.MarkInGeneration(ctx, l.generationKey(), l.prefix(), key, l.ttl)
	if err != nil {
		l.logger.Warn("redis mark failed, using memory ledger", zap.String("key", key), zap.Error(err))
		return l.memory(l.gen.Load()).TryMark(ctx, key)
	}
	l.observe(gen)
	if !ok {
		return false
	}
	// a key marked in memory while redis was down must not fire again
	return l.memory(gen).TryMark(ctx, key)
}

func (l *RedisLedger) Has(ctx context.Context, key string) bool {
	gen, err := l.store.Generation(ctx, l.generationKey())
	if err != nil {
		return l.memory(l.gen.Load()).Has(ctx, key)
	}
	l.observe(gen)
	n, err := l.store.Client.Exists(ctx, l.entryKey(gen, key)).Result()
	if err != nil {
		return l.memory(gen).Has(ctx, key)
	}
	return n > 0 || l.memory(gen).Has(ctx, key)
}

func (l *RedisLedger) Reset(ctx context.Context) {
	gen, err := l.store.BumpGeneration(ctx, l.generationKey(), l.ttl)
	if err != nil {
		l.logger.Warn("redis generation bump failed", zap.Error(err))
		gen = l.gen.Load() + 1
	}
	l.observe(gen)
	l.mu.Lock()
	l.fallback = NewMemoryLedger()
	l.fallbackGen = gen
	l.mu.Unlock()
}

// Generation returns the last generation this ledger saw in Redis.
func (l *RedisLedger) Generation() int64 {
	return l.gen.Load()
}
