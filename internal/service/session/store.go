package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/cantonese-tutor/backend/internal/model/chat"
)

// DefaultHistoryLimit 是每个会话保留的最大轮次数。
const DefaultHistoryLimit = 20

// Store encapsulates per-session turn history. Lifetime is the process lifetime
// unless sessions are closed or swept for inactivity.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	limit    int
	now      func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithHistoryLimit caps every session to the most recent n turns.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore bootstraps the in-memory session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*chat.Session),
		limit:    DefaultHistoryLimit,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limit returns the configured history cap.
func (s *Store) Limit() int {
	return s.limit
}

// Create provisions an anonymous session with an empty history.
func (s *Store) Create(_ context.Context) chat.Session {
	now := s.now()
	created := &chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Turns:     make([]chat.Turn, 0, s.limit),
	}

	s.mu.Lock()
	s.sessions[created.ID] = created
	s.mu.Unlock()

	return chat.Session{ID: created.ID, CreatedAt: created.CreatedAt, UpdatedAt: created.UpdatedAt}
}

// Append adds turns to the session history, creating the session when the id is
// unknown, and keeps only the most recent turns. It returns a copy of the result.
func (s *Store) Append(_ context.Context, sessionID string, turns ...chat.Turn) []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookupOrCreate(sessionID)
	sess.Turns = append(sess.Turns, turns...)
	if overflow := len(sess.Turns) - s.limit; overflow > 0 {
		trimmed := make([]chat.Turn, s.limit, s.limit)
		copy(trimmed, sess.Turns[overflow:])
		sess.Turns = trimmed
	}
	sess.UpdatedAt = s.now()

	return copyTurns(sess.Turns)
}

// History returns the stored turns for the session; unknown ids yield an empty slice.
func (s *Store) History(_ context.Context, sessionID string) []chat.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []chat.Turn{}
	}
	return copyTurns(sess.Turns)
}

// Exists reports whether the session is currently held.
func (s *Store) Exists(_ context.Context, sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// Close drops a session. It reports whether the session existed.
func (s *Store) Close(_ context.Context, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Sweep removes sessions idle for longer than ttl and returns how many were removed.
func (s *Store) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookupOrCreate must be called with the write lock held.
func (s *Store) lookupOrCreate(sessionID string) *chat.Session {
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	now := s.now()
	sess := &chat.Session{ID: sessionID, CreatedAt: now, UpdatedAt: now}
	s.sessions[sessionID] = sess
	return sess
}

func copyTurns(turns []chat.Turn) []chat.Turn {
	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied
}
