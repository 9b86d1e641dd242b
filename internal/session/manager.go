package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/sm2"
)

// Manager owns the live sessions. Sessions are in-memory only: abandoning
// one mid-way leaves progress as of the last completed grading, with
// nothing to roll back.
type Manager struct {
	engine sm2.Params
	writer *Writer
	ttl    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. ttl is how long an untouched session
// survives before the janitor removes it; zero disables expiry.
func NewManager(engine sm2.Params, writer *Writer, ttl time.Duration) *Manager {
	return &Manager{
		engine:   engine,
		writer:   writer,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session over an already-selected, ordered due set.
func (m *Manager) Start(learnerID string, cards []domain.Card, progress map[string]domain.ProgressState) *Session {
	s := newSession(uuid.NewString(), learnerID, cards, progress, m.engine, m.writer)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Sweep removes sessions idle longer than the TTL and returns how many
// were dropped.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var dropped int
	for id, s := range m.sessions {
		if s.idleSince(now) > m.ttl {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				slog.Info("expired idle sessions", "count", n)
			}
		}
	}
}
