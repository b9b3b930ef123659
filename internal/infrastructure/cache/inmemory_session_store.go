package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/sales"
	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = 30 * time.Second
	defaultSessionTTL      = 30 * time.Minute
)

// cacheEntry wraps a cached value with expiration time
type cacheEntry[T any] struct {
	value     *T
	expiresAt time.Time
}

func (e *cacheEntry[T]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemorySessionStore implements sales.SessionStore in process memory.
// Sessions are lost on restart and not shared between instances.
type InMemorySessionStore struct {
	mu              sync.RWMutex
	sessions        map[uuid.UUID]*cacheEntry[sales.Bill]
	ttl             time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time
	stopCh          chan struct{}
	stopped         atomic.Bool
}

// InMemorySessionStoreOption is a functional option for configuring the store
type InMemorySessionStoreOption func(*InMemorySessionStore)

// WithSessionTTL sets how long an untouched session lives
func WithSessionTTL(ttl time.Duration) InMemorySessionStoreOption {
	return func(s *InMemorySessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired sessions are swept
func WithCleanupInterval(interval time.Duration) InMemorySessionStoreOption {
	return func(s *InMemorySessionStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithSessionLogger sets the logger for the store
func WithSessionLogger(logger *zap.Logger) InMemorySessionStoreOption {
	return func(s *InMemorySessionStore) {
		s.logger = logger
	}
}

// withClock replaces the clock (tests)
func withClock(now func() time.Time) InMemorySessionStoreOption {
	return func(s *InMemorySessionStore) {
		s.now = now
	}
}

// NewInMemorySessionStore creates the store and starts its cleanup goroutine.
// Call Close to stop it.
func NewInMemorySessionStore(opts ...InMemorySessionStoreOption) *InMemorySessionStore {
	s := &InMemorySessionStore{
		sessions:        make(map[uuid.UUID]*cacheEntry[sales.Bill]),
		ttl:             defaultSessionTTL,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.cleanupLoop()
	return s
}

// Put stores a copy of the bill and refreshes its TTL
func (s *InMemorySessionStore) Put(_ context.Context, bill *sales.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[bill.ID] = &cacheEntry[sales.Bill]{
		value:     bill.Clone(),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Get returns a copy of the bill
func (s *InMemorySessionStore) Get(_ context.Context, id uuid.UUID) (*sales.Bill, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok || entry.isExpired(s.now()) {
		return nil, false, nil
	}
	return entry.value.Clone(), true, nil
}

// Delete removes the session
func (s *InMemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// List returns every live session
func (s *InMemorySessionStore) List(_ context.Context) ([]*sales.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	bills := make([]*sales.Bill, 0, len(s.sessions))
	for _, entry := range s.sessions {
		if entry.isExpired(now) {
			continue
		}
		bills = append(bills, entry.value.Clone())
	}
	return bills, nil
}

// Len returns the number of stored sessions, expired ones included until swept
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *InMemorySessionStore) Close() error {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	return nil
}

func (s *InMemorySessionStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if entry.isExpired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Expired bill sessions removed", zap.Int("count", removed))
	}
}
