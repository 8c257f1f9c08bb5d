package db

import (
	"context"
	"fmt"

	"github.com/patrickwarner/surfacekit/internal/config"
)

// Backend names accepted by LEDGER_BACKEND and KV_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Connections holds the external stores selected by configuration. Either
// field is nil when no configured component needs it.
type Connections struct {
	Redis    *RedisStore
	Postgres *Postgres
}

// Open connects to every backend the configuration asks for.
func Open(ctx context.Context, cfg config.Config) (*Connections, error) {
	conns := &Connections{}

	switch cfg.LedgerBackend {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
	switch cfg.KVBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
	}

	if cfg.LedgerBackend == BackendRedis || cfg.KVBackend == BackendRedis {
		rs, err := InitRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		conns.Redis = rs
	}

	if cfg.KVBackend == BackendPostgres {
		pg, err := InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			conns.Close()
			return nil, err
		}
		conns.Postgres = pg
	}

	return conns, nil
}

// Close releases every open connection.
func (c *Connections) Close() {
	if c == nil {
		return
	}
	c.Redis.Close()
	c.Postgres.Close()
}
