package history

import (
	"context"
	"sync"
	"time"

	"github.com/justestif/go-mood-recommender/internal/emotion"
)

type memoryWindow struct {
	observations []emotion.Observation
	expiresAt    time.Time
}

// MemoryStore keeps windows in process memory. Suitable for development and
// single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*memoryWindow
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL sets the window expiry.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*memoryWindow),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push appends an observation to the user's window.
func (s *MemoryStore) Push(_ context.Context, userID string, obs emotion.Observation, windowSize int) error {
	if userID == "" {
		return ErrInvalidUser
	}

	key := windowKey(userID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = &memoryWindow{}
		s.windows[key] = w
	}

	w.observations = trim(append(w.observations, obs), windowSize)
	w.expiresAt = now.Add(s.ttl)
	return nil
}

// Recent returns the user's most recent observations, oldest first.
func (s *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]emotion.Observation, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[windowKey(userID)]
	if !ok || s.now().After(w.expiresAt) {
		return []emotion.Observation{}, nil
	}
	return tail(w.observations, limit), nil
}

// Sweep removes expired windows.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.After(w.expiresAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
