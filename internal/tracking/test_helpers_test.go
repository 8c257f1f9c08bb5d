package tracking

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/patrickwarner/surfacekit/internal/db"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *db.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, &db.RedisStore{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}
