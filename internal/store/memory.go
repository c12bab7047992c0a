package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no token is stored under a key.
	ErrNotFound = errors.New("no access token stored")
)

// AccessToken is a credential issued by the messaging platform.
type AccessToken struct {
	Value      string    `json:"value"`
	ObtainedAt time.Time `json:"obtained_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// ExpiresAt is the instant the issuer stops honouring the token.
func (t AccessToken) ExpiresAt() time.Time {
	return t.ObtainedAt.Add(time.Duration(t.TTLSeconds) * time.Second)
}

// UsableAt reports whether the token can still be used at now, keeping
// margin in reserve before the hard expiry.
func (t AccessToken) UsableAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	if margin < 0 {
		margin = 0
	}
	return now.Before(t.ExpiresAt().Add(-margin))
}

// MemoryStore is a concurrency-safe in-memory token store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: application id
	data map[string]AccessToken
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]AccessToken),
	}
}

// Load returns the token saved under key.
func (s *MemoryStore) Load(_ context.Context, key string) (AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.data[key]
	if !ok {
		return AccessToken{}, ErrNotFound
	}
	return tok, nil
}

// Save replaces the token under key.
func (s *MemoryStore) Save(_ context.Context, key string, tok AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = tok
	return nil
}
