// Package token holds the session access token issued by the campaign backend.
package token

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrMissing = errors.New("access token not set")
	ErrRevoked = errors.New("access token revoked")
)

// Cache keeps one access token for the lifetime of a session. There is no
// refresh: once revoked it stays revoked until a new Cache is created.
type Cache struct {
	mu        sync.RWMutex
	value     string
	revoked   bool
	fetchedAt time.Time
}

// Set stores the token unless the cache was revoked. It reports whether the
// token was stored.
func (c *Cache) Set(value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked || value == "" {
		return false
	}
	c.value = value
	c.fetchedAt = time.Now()
	return true
}

// Get returns the cached token.
func (c *Cache) Get() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.revoked:
		return "", ErrRevoked
	case c.value == "":
		return "", ErrMissing
	}
	return c.value, nil
}

// Revoke drops the token permanently.
func (c *Cache) Revoke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = ""
	c.revoked = true
}

// Revoked reports whether Revoke has been called.
func (c *Cache) Revoked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revoked
}

// Age returns how long ago the token was stored, or zero when none is held.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == "" {
		return 0
	}
	return time.Since(c.fetchedAt)
}

// Redact shortens a token for logging.
func Redact(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + "****"
}
