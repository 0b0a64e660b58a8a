package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations invalidates tokens before they expire
type Revocations interface {
	// Revoke blacklists a token id until ttl elapses
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeUser rejects every token of the user issued before the current second
	RevokeUser(ctx context.Context, userID string, ttl time.Duration) error
	IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// RedisRevocations implements Revocations using Redis
type RedisRevocations struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocations creates a Redis backed revocation list
func NewRedisRevocations(client redis.UniversalClient, prefix string) *RedisRevocations {
	return &RedisRevocations{
		client:    client,
		keyPrefix: prefix + "token:revoked:",
	}
}

func (r *RedisRevocations) jtiKey(jti string) string {
	return r.keyPrefix + "jti:" + jti
}

func (r *RedisRevocations) userKey(userID string) string {
	return r.keyPrefix + "user:" + userID
}

// Revoke adds a token id to the list
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks whether a token id is on the list
func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return exists > 0, nil
}

// RevokeUser stores the invalidation instant for a user
func (r *RedisRevocations) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	err := r.client.Set(ctx, r.userKey(userID), time.Now().Unix(), ttl).Err()
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// IsUserRevoked reports whether a token issued at issuedAt predates the user's invalidation
func (r *RedisRevocations) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	value, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user revocation: %w", err)
	}

	invalidatedAt, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse invalidation timestamp: %w", err)
	}
	return issuedAt.Unix() < invalidatedAt, nil
}

// MemoryRevocations keeps the revocation list in process memory.
// Only suitable for a single instance.
type MemoryRevocations struct {
	mu    sync.Mutex
	jtis  map[string]time.Time
	users map[string]time.Time
}

// NewMemoryRevocations creates an in-memory revocation list
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		jtis:  make(map[string]time.Time),
		users: make(map[string]time.Time),
	}
}

// Revoke adds a token id to the list
func (m *MemoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jtis[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked checks whether a token id is on the list and not expired
func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiration, ok := m.jtis[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiration) {
		delete(m.jtis, jti)
		return false, nil
	}
	return true, nil
}

// RevokeUser stores the invalidation instant for a user
func (m *MemoryRevocations) RevokeUser(_ context.Context, userID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = time.Now()
	return nil
}

// IsUserRevoked reports whether a token issued at issuedAt predates the user's invalidation
func (m *MemoryRevocations) IsUserRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	return issuedAt.Unix() < at.Unix(), nil
}

var (
	_ Revocations = (*RedisRevocations)(nil)
	_ Revocations = (*MemoryRevocations)(nil)
)
