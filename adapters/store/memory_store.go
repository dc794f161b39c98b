package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

// MemoryStore is an in-memory challenge ledger
type MemoryStore struct {
	used map[string]time.Time
	mu   sync.RWMutex
	now  func() time.Time
}

// NewMemoryStore creates a new in-memory ledger
func NewMemoryStore() ports.ChallengeLedger {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		used: make(map[string]time.Time),
		now:  now,
	}
}

// MarkUsed records the challenge until ttl elapses
func (s *MemoryStore) MarkUsed(ctx context.Context, challenge core.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.used[challengeKey(challenge)] = now.Add(ttl)
	s.sweepLocked(now)

	return nil
}

// IsUsed checks whether the challenge was recorded and has not aged out
func (s *MemoryStore) IsUsed(ctx context.Context, challenge core.Challenge) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, exists := s.used[challengeKey(challenge)]
	if !exists {
		return false, nil
	}

	return s.now().Before(expiry), nil
}

// sweepLocked drops expired entries; the caller holds s.mu
func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, expiry := range s.used {
		if !now.Before(expiry) {
			delete(s.used, key)
		}
	}
}
