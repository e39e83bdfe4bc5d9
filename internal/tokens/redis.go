package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "download:"

// RedisStore keeps tokens in Redis. Expiry rides on the key TTL and
// redemption uses GETDEL, so double-redeem races lose atomically even
// across multiple API instances.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Issue(ctx context.Context, path string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		// SET EX rejects non-positive TTLs; an already-expired token still
		// has to exist as a value callers can hold, it just never resolves.
		ttl = time.Millisecond
	}
	if err := s.rdb.Set(ctx, keyPrefix+token, path, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (string, error) {
	path, err := s.rdb.GetDel(ctx, keyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return path, nil
}
