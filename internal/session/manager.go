// Package session tracks protocol sessions by identifier with an idle-expiry
// sweep. It plugs into the streamable HTTP transport as its session id
// manager, so an expired or unknown id forces the caller to re-handshake.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound means the identifier is unknown or already expired.
var ErrSessionNotFound = errors.New("session not found")

const sweepInterval = time.Minute

type session struct {
	createdAt    time.Time
	lastActivity time.Time
}

// Manager implements the transport's SessionIdManager. Terminated and swept
// sessions simply disappear from the table; terminating twice is a no-op.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*session
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
	done        chan struct{}
	once        sync.Once
}

func NewManager(idleTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessions:    make(map[string]*session),
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Generate allocates a new session on handshake.
func (m *Manager) Generate() string {
	id := "pgscout-" + uuid.NewString()
	now := m.now()
	m.mu.Lock()
	m.sessions[id] = &session{createdAt: now, lastActivity: now}
	n := len(m.sessions)
	m.mu.Unlock()
	m.logger.Debug("session created", "session_id", id, "active", n)
	return id
}

// Validate resolves a session id carried by a request and refreshes its
// last-activity time.
func (m *Manager) Validate(sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return true, ErrSessionNotFound
	}
	s.lastActivity = m.now()
	return false, nil
}

// Terminate removes a session. Idempotent: a second terminate is a no-op.
func (m *Manager) Terminate(sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		delete(m.sessions, sessionID)
		m.logger.Debug("session terminated", "session_id", sessionID)
	}
	return false, nil
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweep loop.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				m.logger.Info("idle sessions expired", "count", n)
			}
		}
	}
}

// sweep drops every session idle longer than the timeout.
func (m *Manager) sweep() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired int
	for id, s := range m.sessions {
		if s.lastActivity.Before(cutoff) {
			delete(m.sessions, id)
			expired++
		}
	}
	return expired
}
