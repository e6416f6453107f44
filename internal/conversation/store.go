package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mindsight/synapses/internal/domain"
)

// Store is the process-wide session map, keyed by user id. Access to one
// user's session is serialized through a per-session mutex so two
// near-simultaneous messages cannot race on the step counter; different
// users never contend. Sessions untouched for longer than the configured TTL
// are evicted by the janitor.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	gone    bool // set by the janitor after eviction; holders must re-acquire
	session *domain.Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*sessionEntry)}
}

// Get returns the locked session for userID if one exists. The returned
// release function must be called exactly once. ok is false when the user has
// no session; nothing is created in that case.
func (s *Store) Get(userID string) (sess *domain.Session, release func(), ok bool) {
	for {
		s.mu.Lock()
		e, exists := s.sessions[userID]
		s.mu.Unlock()
		if !exists {
			return nil, nil, false
		}

		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}
		return e.session, e.mu.Unlock, true
	}
}

// Acquire returns the locked session for userID, creating it when absent.
// The returned release function must be called exactly once.
func (s *Store) Acquire(userID string) (*domain.Session, func()) {
	for {
		s.mu.Lock()
		e, exists := s.sessions[userID]
		if !exists {
			e = &sessionEntry{session: &domain.Session{UserID: userID}}
			s.sessions[userID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.gone {
			// Evicted between lookup and lock; take another pass.
			e.mu.Unlock()
			continue
		}
		return e.session, e.mu.Unlock
	}
}

// Len returns the number of resident sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor runs a background goroutine that periodically evicts sessions
// whose last activity is older than ttl. Busy sessions are skipped and picked
// up on a later sweep.
func (s *Store) StartJanitor(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("session janitor started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if evicted := s.sweep(time.Now(), ttl); evicted > 0 {
					slog.Info("session janitor evicted idle sessions", "count", evicted)
				}
			case <-ctx.Done():
				slog.Info("session janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (s *Store) sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for userID, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if now.Sub(e.session.LastActivity) > ttl {
			e.gone = true
			delete(s.sessions, userID)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}
