package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
)

// compareAndDelete deletes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps codes in Redis so several server instances share them.
// Each key carries the entry's expiry as its TTL, so Redis drops stale codes
// on its own.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(email string) string {
	return s.prefix + email
}

func (s *RedisStore) Put(ctx context.Context, email string, e Entry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, email)
	}
	if err := s.client.Set(ctx, s.key(email), e.Code, ttl).Err(); err != nil {
		return fmt.Errorf("%w: otp store set: %w", common.ErrorInternal, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, email string) (Entry, bool, error) {
	key := s.key(email)

	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("%w: otp store get: %w", common.ErrorInternal, err)
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		// Key without a TTL or gone between the two commands.
		return Entry{}, false, nil
	}
	return Entry{Code: get.Val(), ExpiresAt: s.now().Add(remaining)}, true, nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, email, code string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.client, []string{s.key(email)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("%w: otp store compare-and-delete: %w", common.ErrorInternal, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: otp store delete: %w", common.ErrorInternal, err)
	}
	return nil
}

// Purge is a no-op; key TTLs already expire entries.
func (s *RedisStore) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}
