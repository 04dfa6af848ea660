package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"demoflow/internal/logging"
	"demoflow/internal/services"
)

// Registry creates, looks up and closes sessions.
type Registry struct {
	opts   Options
	logger *slog.Logger
	newID  func() string

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry returns an empty registry whose sessions share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "session.registry"),
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
}

// Create builds and registers a new session.
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, services.Wrap(services.ErrConflict, "session registry", "create", "registry is shut down", nil)
	}
	id := r.newID()
	for r.sessions[id] != nil {
		id = r.newID()
	}
	r.mu.Unlock()

	s, err := New(id, r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.Close()
		return nil, services.Wrap(services.ErrConflict, "session registry", "create", "registry is shut down", nil)
	}
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.opts.Metrics.SessionOpened()
	r.logger.Info("session created",
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldEventType, "session_created"),
		logging.Int("active_sessions", count),
	)
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "session registry", "get", id, ErrNotFound)
	}
	return s, nil
}

// List returns the ids of live sessions in lexical order.
func (r *Registry) List() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Delete closes and forgets the session with id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrNotFound, "session registry", "delete", id, ErrNotFound)
	}
	s.Close()
	r.opts.Metrics.SessionClosed()
	r.logger.Info("session deleted",
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldEventType, "session_deleted"),
	)
	return nil
}

// CloseAll closes every session and rejects later Create calls.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		r.opts.Metrics.SessionClosed()
	}
	if len(sessions) > 0 {
		r.logger.Info("sessions closed", logging.Int("count", len(sessions)))
	}
}
