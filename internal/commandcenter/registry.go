package commandcenter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/metrics"
)

// Factory builds the controller for a new session.
type Factory func(userID, sessionID string) (*Controller, error)

type sessionKey struct {
	userID    string
	sessionID string
}

// Registry maps (user, session) pairs to controllers, creating them on demand.
type Registry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Controller
	factory  Factory
	closed   bool
}

// NewRegistry returns an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[sessionKey]*Controller),
		factory:  factory,
	}
}

// Get returns the controller for the session, creating it when missing.
func (r *Registry) Get(userID, sessionID string) (*Controller, error) {
	key := sessionKey{userID: userID, sessionID: sessionID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.sessions[key]; ok {
		return c, nil
	}

	c, err := r.factory(userID, sessionID)
	if err != nil {
		return nil, err
	}
	r.sessions[key] = c
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return c, nil
}

// Lookup returns an existing controller without creating one.
func (r *Registry) Lookup(userID, sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[sessionKey{userID: userID, sessionID: sessionID}]
	return c, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// evictIdle closes and removes sessions idle since before cutoff that have
// no query in flight.
func (r *Registry) evictIdle(cutoff time.Time) []*Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Controller
	for key, c := range r.sessions {
		if !c.closeIfIdle(cutoff) {
			continue
		}
		delete(r.sessions, key)
		evicted = append(evicted, c)
	}
	metrics.SessionsActive.Set(float64(len(r.sessions)))
	return evicted
}

// Close closes every controller and waits for in-flight queries.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	controllers := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		c.Close()
		controllers = append(controllers, c)
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range controllers {
		if err := c.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
	}
	return errors.Join(errs...)
}
