package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/session"
)

// SessionFactory builds a fresh session for a new browser visitor.
type SessionFactory func() *session.Session

// Store keeps the live browser sessions by id.
type Store struct {
	newSession SessionFactory
	ttl        time.Duration
	logger     *zap.SugaredLogger

	mu    sync.RWMutex
	rooms map[string]*room
}

// NewStore creates a store. Sessions idle longer than ttl are removed by
// Sweep; a ttl of zero keeps them until deleted.
func NewStore(factory SessionFactory, ttl time.Duration, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		newSession: factory,
		ttl:        ttl,
		logger:     logger,
		rooms:      make(map[string]*room),
	}
}

// Create registers a new session and returns its id.
func (s *Store) Create() string {
	id := uuid.New().String()
	r := newRoom(id, s.newSession(), s.logger)

	s.mu.Lock()
	s.rooms[id] = r
	s.mu.Unlock()

	s.logger.Infow("session created", "session_id", id)
	return id
}

func (s *Store) get(id string) (*room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete drops a session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()

	if ok {
		r.close()
		s.logger.Infow("session deleted", "session_id", id)
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Sweep drops every session idle for longer than the ttl and returns how
// many were removed.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	var expired []*room
	s.mu.Lock()
	for id, r := range s.rooms {
		if r.sess.IdleSince() > s.ttl {
			expired = append(expired, r)
			delete(s.rooms, id)
		}
	}
	s.mu.Unlock()

	for _, r := range expired {
		r.close()
		s.logger.Infow("session expired", "session_id", r.id)
	}
	return len(expired)
}

// Close drops every session.
func (s *Store) Close() {
	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[string]*room)
	s.mu.Unlock()

	for _, r := range rooms {
		r.close()
	}
}
