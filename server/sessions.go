// Package server exposes the engine as in-process services: named
// sessions wrapping root entities, evaluation, browsing and inspection.
package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chazu/amalgraph/concurrency"
	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/intern"
)

// Session is one workspace: a root entity plus the thread pool its
// evaluations share.
type Session struct {
	ID      string
	Name    string
	Root    *entity.Entity
	Pool    *intern.Pool
	Threads *concurrency.Pool
}

// SessionStore manages workspace sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	threadPoolSize int
}

// NewSessionStore creates a session store whose sessions get thread
// pools of the given capacity.
func NewSessionStore(threadPoolSize int) *SessionStore {
	return &SessionStore{
		sessions:       make(map[string]*Session),
		threadPoolSize: threadPoolSize,
	}
}

// Create creates a new session with an optional name. The session's
// root entity has root permission, so programs evaluated through it may
// use i/o and persistence opcodes.
func (s *SessionStore) Create(name string) *Session {
	pool := intern.New()
	root := entity.New(name, pool, uuid.NewString())
	root.RootPermission = true

	session := &Session{
		ID:      uuid.NewString(),
		Name:    name,
		Root:    root,
		Pool:    pool,
		Threads: concurrency.New(s.threadPoolSize),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Destroy removes a session and its entity tree.
func (s *SessionStore) Destroy(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("server: no session %q", id)
	}
	for _, name := range session.Root.ChildNames() {
		session.Root.DestroyChild(name)
	}
	return nil
}

// List returns every live session.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
