// Package ledger remembers which voicemails have been relayed. The poller
// reads it before dispatch and writes it after, so a message whose \Seen
// flag was lost (a crash between delivery and STORE, or another client
// clearing the flag) is not announced twice.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTTL is how long a processed marker is kept.
const DefaultTTL = 30 * 24 * time.Hour

// ErrEmptyKey indicates a message without any usable identifier.
var ErrEmptyKey = errors.New("empty ledger key")

// Store records processed message keys.
type Store interface {
	// Seen reports whether key was marked and has not expired.
	Seen(ctx context.Context, key string) (bool, error)

	// Mark records key as processed. Marking twice is not an error.
	Mark(ctx context.Context, key string) error

	Close() error
}

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// MemoryStore keeps markers in process memory. They are lost on restart,
// after which the mailbox \Seen flag is the only guard.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> expiry
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore creates a MemoryStore. ttl <= 0 means markers never expire.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.keys[key]
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && !s.now().Before(exp) {
		delete(s.keys, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return nil
	}
	var exp time.Time
	if s.ttl > 0 {
		exp = s.now().Add(s.ttl)
	}
	s.keys[key] = exp
	return nil
}

// Len returns the number of stored markers, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func (s *MemoryStore) Close() error { return nil }
