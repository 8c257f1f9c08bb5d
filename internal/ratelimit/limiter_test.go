package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiterDisabled(t *testing.T) {
	l := NewKeyedLimiter(Config{Capacity: 1, RefillRate: 1})
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("c1"))
	}
	assert.Empty(t, l.Stats())

	var nilLimiter *KeyedLimiter
	assert.True(t, nilLimiter.Allow("c1"))
}

func TestKeyedLimiterPerKey(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := NewKeyedLimiter(Config{Capacity: 2, RefillRate: 1, Enabled: true})
	l.now = clock.now

	assert.True(t, l.Allow("c1"))
	assert.True(t, l.Allow("c1"))
	assert.False(t, l.Allow("c1"))
	assert.True(t, l.Allow("c2"), "keys have independent buckets")

	clock.advance(time.Second)
	assert.True(t, l.Allow("c1"))

	stats := l.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "c1", stats[0].Key)
	assert.Equal(t, int64(1), stats[0].Hits)
	assert.Equal(t, int64(4), stats[0].Total)
	assert.InDelta(t, 0.25, stats[0].HitRate, 1e-9)
	assert.Equal(t, "c1: 1/4 throttled (25.00%)", stats[0].String())
	assert.Equal(t, int64(0), stats[1].Hits)
}
