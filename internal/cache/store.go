package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is a string key/value store. A zero ttl means no expiry. Get
// reports found=false for missing or expired keys. Take reads and removes a
// key in one step, so concurrent callers never both see the same value.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) (value string, found bool, err error)
}

// Key helpers.
const (
	otpKeyPrefix     = "otp:%s"
	revokedKeyPrefix = "session:revoked:%s"
)

// OTPKey is where the hashed sign-in code for email lives.
func OTPKey(email string) string {
	return fmt.Sprintf(otpKeyPrefix, email)
}

// RevokedTokenKey marks a signed-out token id.
func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(revokedKeyPrefix, jti)
}

// NewStore returns a Redis-backed store when a client is connected and an
// in-process store otherwise.
func NewStore() Store {
	if client != nil {
		return NewRedisStore(client)
	}
	return NewMemoryStore()
}

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is an in-process Store. It is the fallback when Redis is
// unavailable and the fake used by tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

func (s *MemoryStore) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok, err := s.getLocked(key)
	delete(s.data, key)
	return v, ok, err
}

func (s *MemoryStore) getLocked(key string) (string, bool, error) {
	e, ok := s.data[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
