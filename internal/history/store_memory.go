package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps history for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	expires map[string]time.Time
	ttl     time.Duration
	clock   func() time.Time
}

type MemoryOption func(*MemoryStore)

func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) (*MemoryStore, error) {
	if err := validateTTL(ttl); err != nil {
		return nil, err
	}
	s := &MemoryStore{
		expires: make(map[string]time.Time),
		ttl:     ttl,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *MemoryStore) Remember(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry := s.clock().Add(s.ttl)
	for _, name := range names {
		if name != "" {
			s.expires[name] = expiry
		}
	}
	return nil
}

func (s *MemoryStore) Committed(_ context.Context, names []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock()
	out := make(map[string]bool)
	for _, name := range names {
		if exp, ok := s.expires[name]; ok && now.Before(exp) {
			out[name] = true
		}
	}
	return out, nil
}
