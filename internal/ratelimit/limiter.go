package ratelimit

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Config holds the limiter settings.
type Config struct {
	Capacity   int  // burst allowance per key
	RefillRate int  // tokens per second per key
	Enabled    bool // when false Allow always succeeds
}

// KeyedLimiter keeps one lazily created bucket per key. The bridge keys it by
// campaign ID.
type KeyedLimiter struct {
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	now     func() time.Time
}

// NewKeyedLimiter creates a limiter with the given configuration.
func NewKeyedLimiter(config Config) *KeyedLimiter {
	return &KeyedLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		now:     time.Now,
	}
}

// Allow reports whether a call for key may proceed.
func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}

	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		bucket, exists = l.buckets[key]
		if !exists {
			bucket = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.now)
			l.buckets[key] = bucket
		}
		l.mu.Unlock()
	}

	return bucket.Allow()
}

// Stats returns a snapshot per key, sorted by key.
func (l *KeyedLimiter) Stats() []Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Stats, 0, len(l.buckets))
	for key, bucket := range l.buckets {
		hits, total := bucket.Stats()
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total)
		}
		out = append(out, Stats{Key: key, Hits: hits, Total: total, HitRate: hitRate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats describes throttling for a single key.
type Stats struct {
	Key     string  `json:"key"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"` // 0.0-1.0
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %d/%d throttled (%.2f%%)", s.Key, s.Hits, s.Total, s.HitRate*100)
}
