package statestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// saveScript writes the document only if its revision is newer than the stored one
var saveScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'rev')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// RedisStore keeps documents in Redis hashes
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a Redis-backed store. Keys are prefixed with keyPrefix + "state:".
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "state:",
		ttl:       ttl,
	}
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, key string, revision uint64, data []byte) (bool, error) {
	applied, err := saveScript.Run(ctx, s.client, []string{s.keyPrefix + key},
		revision, data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to save state %s: %w", key, err)
	}
	return applied == 1, nil
}

// Load implements Store
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, uint64, error) {
	values, err := s.client.HMGet(ctx, s.keyPrefix+key, "rev", "data").Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load state %s: %w", key, err)
	}
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return nil, 0, ErrNotFound
	}

	rev, err := strconv.ParseUint(fmt.Sprint(values[0]), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("state %s has invalid revision: %w", key, err)
	}
	data, ok := values[1].(string)
	if !ok {
		return nil, 0, errors.New("state " + key + " has invalid data")
	}
	return []byte(data), rev, nil
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}
