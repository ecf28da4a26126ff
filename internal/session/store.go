package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockmeta/internal/config"
	"stockmeta/internal/logging"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Store keeps server-side sessions keyed by random identifiers.
type Store struct {
	cfg      *config.Config
	base     *slog.Logger
	logger   *slog.Logger
	observer VerificationObserver
	idle     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty store. Sessions idle longer than
// server.session_idle_minutes are removed by Sweep.
func NewStore(cfg *config.Config, logger *slog.Logger, observer VerificationObserver) *Store {
	idle := time.Hour
	if cfg != nil && cfg.Server.SessionIdleMinutes > 0 {
		idle = time.Duration(cfg.Server.SessionIdleMinutes) * time.Minute
	}
	return &Store{
		cfg:      cfg,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "sessions"),
		observer: observer,
		idle:     idle,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (s *Store) Create() (*Session, error) {
	id := uuid.NewString()
	sess, err := New(id, s.cfg, s.base, s.observer)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.logger.Debug("session created", logging.String(logging.FieldSessionID, id), logging.Int("sessions", count))
	return sess, nil
}

// Get returns a session and records activity on it.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.Touch()
	}
	return sess, ok
}

// Delete drops a session and everything it holds. A session whose queue has
// a run in progress is kept and queue.ErrRunActive is returned; otherwise its
// queue is retired in the same step, so no run can start on it afterwards.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("delete session %s: %w", id, ErrSessionNotFound)
	}
	if err := sess.Queue().Retire(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now minus the idle timeout.
// Sessions with an active run are kept. Only the queue lock is taken per
// session, never the session lock.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if !sess.idleSince().Before(cutoff) {
			continue
		}
		if err := sess.Queue().Retire(); err != nil {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	if removed > 0 {
		s.logger.Info("expired idle sessions",
			logging.String(logging.FieldEventType, "sessions_expired"),
			logging.Int("removed", removed),
			logging.Int("remaining", len(s.sessions)),
		)
	}
	return removed
}

// RunJanitor sweeps on every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
