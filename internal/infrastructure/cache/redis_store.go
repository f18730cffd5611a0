package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"
)

const defaultRedisPrefix = "coursecraft:cache"

// RedisStore shares cache entries between instances. Each entry is a JSON
// string under a hashed key. A sorted set scored by an insertion sequence
// provides the eviction order, so entries created within the same clock
// tick still leave oldest first.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses the default.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// hashFingerprint keeps keys short and free of separators regardless of
// what the free-text query contains.
func hashFingerprint(fingerprint string) string {
	sum := blake3.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}

func (s *RedisStore) entryKey(member string) string {
	return fmt.Sprintf("%s:entry:%s", s.prefix, member)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":index"
}

func (s *RedisStore) seqKey() string {
	return s.prefix + ":seq"
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	data, err := s.rdb.Get(ctx, s.entryKey(hashFingerprint(fingerprint))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry, maxEntries int) (int, error) {
	value, err := encodeEntry(entry)
	if err != nil {
		return 0, fmt.Errorf("encode cache entry: %w", err)
	}
	member := hashFingerprint(entry.Fingerprint)
	key := s.entryKey(member)

	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, s.indexKey(), member)
		pipe.Set(ctx, key, value, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(seq), Member: member})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis put: %w", err)
	}

	if maxEntries <= 0 {
		return 0, nil
	}
	return s.evictOverflow(ctx, maxEntries)
}

func (s *RedisStore) evictOverflow(ctx context.Context, maxEntries int) (int, error) {
	count, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	excess := count - int64(maxEntries)
	if excess <= 0 {
		return 0, nil
	}

	popped, err := s.rdb.ZPopMin(ctx, s.indexKey(), excess).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zpopmin: %w", err)
	}
	if len(popped) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(popped))
	for _, z := range popped {
		if m, ok := z.Member.(string); ok {
			keys = append(keys, s.entryKey(m))
		}
	}
	if len(keys) == 0 {
		return len(popped), nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("redis del evicted: %w", err)
	}
	return len(popped), nil
}

func (s *RedisStore) Delete(ctx context.Context, fingerprint string) error {
	member := hashFingerprint(fingerprint)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.entryKey(member))
		pipe.ZRem(ctx, s.indexKey(), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return int(n), nil
}
