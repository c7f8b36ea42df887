package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hanko-field/teamwear/internal/services"
)

const (
	defaultSessionIdleTTL = 30 * time.Minute
	defaultMaxSessions    = 10000
	maxSectionIDLength    = 120
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("sessions: session not found")
	// ErrTooManySessions is returned when the registry is full.
	ErrTooManySessions = errors.New("sessions: too many active sessions")
)

// WidgetFactory builds a fresh widget for a page section.
type WidgetFactory func(widgetID string) (*services.Widget, error)

// SessionOptions tunes the registry.
type SessionOptions struct {
	IdleTTL     time.Duration
	MaxSessions int
	Now         func() time.Time
	NewID       func() string
	Logger      *zap.Logger
}

// SessionRegistry keeps one widget per session id and expires idle sessions.
type SessionRegistry struct {
	factory     WidgetFactory
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time
	newID       func() string
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	widget   *services.Widget
	lastSeen time.Time
}

// NewSessionRegistry constructs a registry backed by factory.
func NewSessionRegistry(factory WidgetFactory, opts SessionOptions) (*SessionRegistry, error) {
	if factory == nil {
		return nil, errors.New("sessions: widget factory is required")
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultSessionIdleTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return ulid.Make().String() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &SessionRegistry{
		factory:     factory,
		idleTTL:     opts.IdleTTL,
		maxSessions: opts.MaxSessions,
		now:         opts.Now,
		newID:       opts.NewID,
		logger:      opts.Logger,
		sessions:    make(map[string]*session),
	}, nil
}

// Create opens a session for sectionID. The widget id combines the section and the
// session so log lines and cart events can be traced back to both.
func (r *SessionRegistry) Create(sectionID string) (string, *services.Widget, error) {
	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		sectionID = "teamwear"
	}
	if len(sectionID) > maxSectionIDLength {
		sectionID = sectionID[:maxSectionIDLength]
	}

	r.mu.Lock()
	full := len(r.sessions) >= r.maxSessions
	r.mu.Unlock()
	if full {
		// Expired sessions may still be counted until the next sweep.
		r.Sweep()
		r.mu.Lock()
		full = len(r.sessions) >= r.maxSessions
		r.mu.Unlock()
		if full {
			return "", nil, ErrTooManySessions
		}
	}

	id := r.newID()
	widget, err := r.factory(fmt.Sprintf("%s/%s", sectionID, id))
	if err != nil {
		return "", nil, fmt.Errorf("sessions: create widget: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.maxSessions {
		widget.Close()
		return "", nil, ErrTooManySessions
	}
	r.sessions[id] = &session{widget: widget, lastSeen: r.now()}
	return id, widget, nil
}

// Get returns the widget of an active session and refreshes its idle timer.
func (r *SessionRegistry) Get(id string) (*services.Widget, error) {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if now.Sub(s.lastSeen) > r.idleTTL {
		delete(r.sessions, id)
		s.widget.Close()
		return nil, ErrSessionNotFound
	}
	s.lastSeen = now
	return s.widget, nil
}

// Delete ends a session.
func (r *SessionRegistry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	if ok {
		delete(r.sessions, strings.TrimSpace(id))
	}
	r.mu.Unlock()
	if ok {
		s.widget.Close()
	}
	return ok
}

// Sweep drops sessions idle for longer than the TTL and returns how many went.
func (r *SessionRegistry) Sweep() int {
	now := r.now()
	var expired []*services.Widget

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > r.idleTTL {
			delete(r.sessions, id)
			expired = append(expired, s.widget)
		}
	}
	r.mu.Unlock()

	for _, widget := range expired {
		widget.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("expired widget sessions", zap.Int("count", n), zap.Int("active", r.Len()))
			}
		}
	}
}

// Len reports the number of tracked sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close ends every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.widget.Close()
	}
}
