package ledger

import "time"

// SetNow replaces the clock of a MemoryStore.
func (s *MemoryStore) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

// KeyPrefix exports keyPrefix.
const KeyPrefix = keyPrefix
