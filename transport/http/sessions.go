package http

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
	"github.com/layer-3/portal/service"
)

// DefaultSessionTTL evicts handshakes the browser stopped polling
const DefaultSessionTTL = 15 * time.Minute

// CoordinatorFactory builds the coordinator for a new handshake session
type CoordinatorFactory func(id string, params core.AuthRequestParams, navigator ports.Navigator) *service.Coordinator

// Session is one browser's handshake
type Session struct {
	ID          string
	Coordinator *service.Coordinator
	Navigator   *SessionNavigator

	ctx      context.Context
	cancel   context.CancelFunc
	lastSeen time.Time
}

// Context is cancelled when the session is dropped
func (s *Session) Context() context.Context {
	return s.ctx
}

// SessionNavigator records the redirect target; the browser follows it
// from the confirm response
type SessionNavigator struct {
	mu     sync.Mutex
	target string
}

// Navigate implements ports.Navigator
func (n *SessionNavigator) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = target
	return nil
}

// Target returns the last navigation target
func (n *SessionNavigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

// Sessions maps session cookies to running handshakes
type Sessions struct {
	factory CoordinatorFactory
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry
func NewSessions(factory CoordinatorFactory, ttl time.Duration, logger *slog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		factory:  factory,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session bound to params
func (s *Sessions) Create(params core.AuthRequestParams) *Session {
	id := uuid.New().String()
	navigator := &SessionNavigator{}
	ctx, cancel := context.WithCancel(context.Background())

	sess := &Session{
		ID:          id,
		Coordinator: s.factory(id, params, navigator),
		Navigator:   navigator,
		ctx:         ctx,
		cancel:      cancel,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	sess.lastSeen = s.now()
	s.sessions[id] = sess

	return sess
}

// Get returns a live session and refreshes its deadline
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.lastSeen) > s.ttl {
		s.dropLocked(id)
		return nil, false
	}
	sess.lastSeen = s.now()

	return sess, true
}

// Drop cancels the session's in-flight work and forgets it
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(id)
}

// Len returns the number of tracked sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.sessions {
		s.dropLocked(id)
	}
}

func (s *Sessions) dropLocked(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.cancel()
	delete(s.sessions, id)
}

func (s *Sessions) sweepLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			s.logger.Debug("evicting idle handshake session", "session_id", id)
			s.dropLocked(id)
		}
	}
}
