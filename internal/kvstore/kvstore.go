// Package kvstore persists small identifier lists for stateful widgets, such
// as liked reels and viewed stories.
package kvstore

import (
	"context"
	"errors"
	"sync"

	"github.com/patrickwarner/surfacekit/internal/db"
)

// Well-known keys.
const (
	KeyLikedReels    = "reels:liked"
	KeyViewedStories = "stories:viewed"
)

// ErrNilBackend is returned when a store is built around a nil connection.
var ErrNilBackend = errors.New("kvstore: nil backend")

// Store is a persisted list of identifiers per key. A missing key reads as an
// empty list.
type Store interface {
	Get(ctx context.Context, key string) ([]string, error)
	Put(ctx context.Context, key string, ids []string) error
}

// MemoryStore keeps lists in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]string
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.data[key]...), nil
}

func (m *MemoryStore) Put(_ context.Context, key string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]string{}, ids...)
	return nil
}

// RedisStore keeps each list as a JSON value under "kv:<key>".
type RedisStore struct {
	redis *db.RedisStore
}

func NewRedisStore(rs *db.RedisStore) (*RedisStore, error) {
	if rs == nil || rs.Client == nil {
		return nil, ErrNilBackend
	}
	return &RedisStore{redis: rs}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]string, error) {
	return r.redis.GetList(ctx, "kv:"+key)
}

func (r *RedisStore) Put(ctx context.Context, key string, ids []string) error {
	return r.redis.PutList(ctx, "kv:"+key, ids)
}

// PostgresStore keeps lists in the widget_state table.
type PostgresStore struct {
	pg *db.Postgres
}

func NewPostgresStore(pg *db.Postgres) (*PostgresStore, error) {
	if pg == nil || pg.DB == nil {
		return nil, ErrNilBackend
	}
	return &PostgresStore{pg: pg}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]string, error) {
	return p.pg.LoadIDs(ctx, key)
}

func (p *PostgresStore) Put(ctx context.Context, key string, ids []string) error {
	return p.pg.SaveIDs(ctx, key, ids)
}

// FromConnections picks the store named by backend.
func FromConnections(backend string, conns *db.Connections) (Store, error) {
	switch backend {
	case db.BackendRedis:
		if conns == nil {
			return nil, ErrNilBackend
		}
		return NewRedisStore(conns.Redis)
	case db.BackendPostgres:
		if conns == nil {
			return nil, ErrNilBackend
		}
		return NewPostgresStore(conns.Postgres)
	default:
		return NewMemoryStore(), nil
	}
}

// Toggle adds id to the list under key when absent and removes it when
// present. It returns the new list and whether id is now a member.
func Toggle(ctx context.Context, s Store, key, id string) ([]string, bool, error) {
	ids, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	if err := s.Put(ctx, key, out); err != nil {
		return nil, false, err
	}
	return out, !found, nil
}

// Add appends id to the list under key unless it is already there.
func Add(ctx context.Context, s Store, key, id string) ([]string, error) {
	ids, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, v := range ids {
		if v == id {
			return ids, nil
		}
	}
	ids = append(ids, id)
	if err := s.Put(ctx, key, ids); err != nil {
		return nil, err
	}
	return ids, nil
}
