package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore wraps a redis client used for the impression ledger and widget state.
type RedisStore struct {
	Client *redis.Client
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// MarkOnce sets key if it does not exist yet and reports whether this call
// set it. The key expires after ttl; zero means no expiry.
func (r *RedisStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, key, 1, ttl).Result()
}

// Generation returns the current counter stored at key, 0 when unset.
func (r *RedisStore) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := r.Client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// markInGeneration reads the generation at KEYS[1] and sets
// ARGV[1]:<gen>:ARGV[2] if absent, so a concurrent bump can never split the
// read from the write. Returns {gen, 1|0}.
var markInGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
local k = ARGV[1] .. ':' .. gen .. ':' .. ARGV[2]
local ok
if tonumber(ARGV[3]) > 0 then
	ok = redis.call('SET', k, '1', 'NX', 'PX', ARGV[3])
else
	ok = redis.call('SET', k, '1', 'NX')
end
if ok then
	return {tonumber(gen), 1}
end
return {tonumber(gen), 0}
`)

// MarkInGeneration atomically marks prefix:<gen>:key under the generation
// currently stored at genKey. It returns that generation and whether this
// call set the key.
func (r *RedisStore) MarkInGeneration(ctx context.Context, genKey, prefix, key string, ttl time.Duration) (int64, bool, error) {
	res, err := markInGeneration.Run(ctx, r.Client, []string{genKey}, prefix, key, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("mark in generation: unexpected reply %v", res)
	}
	return res[0], res[1] == 1, nil
}

// BumpGeneration increments the counter at key and refreshes its TTL.
func (r *RedisStore) BumpGeneration(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetList reads a JSON-encoded string list. A missing key is an empty list.
func (r *RedisStore) GetList(ctx context.Context, key string) ([]string, error) {
	raw, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", key, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// PutList stores values as a JSON list, replacing what was there.
func (r *RedisStore) PutList(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode list %s: %w", key, err)
	}
	return r.Client.Set(ctx, key, raw, 0).Err()
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
