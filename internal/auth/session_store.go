package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps the server-side record of live sessions, keyed by token ID.
type SessionStore interface {
	Save(ctx context.Context, jti string, userID uint, ttl time.Duration) error
	// Lookup returns the session's user, or ok=false when the session is
	// unknown, expired or revoked.
	Lookup(ctx context.Context, jti string) (userID uint, ok bool, err error)
	Delete(ctx context.Context, jti string) error
}

// RedisSessionStore stores sessions as Redis keys that expire with the session.
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisSessionStore returns a SessionStore backed by rdb.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Save(ctx context.Context, jti string, userID uint, ttl time.Duration) error {
	return s.rdb.Set(ctx, sessionKeyPrefix+jti, strconv.FormatUint(uint64(userID), 10), ttl).Err()
}

func (s *RedisSessionStore) Lookup(ctx context.Context, jti string) (uint, bool, error) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, false, nil
	}
	return uint(id), true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, jti string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+jti).Err()
}

type memorySession struct {
	userID    uint
	expiresAt time.Time
}

// MemorySessionStore is a process-local SessionStore. Expired entries are
// dropped when they are next looked up.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession), now: time.Now}
}

// WithClock replaces the store's time source.
func (s *MemorySessionStore) WithClock(now func() time.Time) *MemorySessionStore {
	s.now = now
	return s
}

func (s *MemorySessionStore) Save(_ context.Context, jti string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[jti] = memorySession{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Lookup(_ context.Context, jti string) (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[jti]
	if !ok {
		return 0, false, nil
	}
	if !s.now().Before(sess.expiresAt) {
		delete(s.sessions, jti)
		return 0, false, nil
	}
	return sess.userID, true, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	return nil
}
