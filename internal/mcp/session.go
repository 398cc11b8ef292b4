// ABOUTME: In-memory session tracking with best-effort persistence.
// ABOUTME: Sessions exist for logging and client continuity, never authorization.

package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azar84/mcp-gateway/internal/store"
)

// session tracks one protocol client. The ownerSecret binds DELETE requests
// to the credential that created the session; nothing else about the session
// carries authority.
type session struct {
	id              string
	tenantID        string
	tokenID         string
	protocolVersion string
	ownerSecret     string
	createdAt       time.Time
	lastSeen        time.Time
}

// SessionSink is the store subset used to persist session rows.
type SessionSink interface {
	CreateSession(ctx context.Context, s *store.Session) error
	TouchSession(ctx context.Context, id string, at time.Time) error
	EndSession(ctx context.Context, id string) error
}

// sessionStore keeps live sessions in memory and mirrors them to the sink
// fire-and-forget. A lost row costs analytics, never correctness.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	sink     SessionSink
	logger   *slog.Logger
}

func newSessionStore(sink SessionSink, logger *slog.Logger) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		sink:     sink,
		logger:   logger,
	}
}

func (s *sessionStore) create(tenantID, tokenID, protocolVersion, clientInfo, ownerSecret string) *session {
	sess := &session{
		id:              uuid.New().String(),
		tenantID:        tenantID,
		tokenID:         tokenID,
		protocolVersion: protocolVersion,
		ownerSecret:     ownerSecret,
		createdAt:       time.Now(),
	}
	sess.lastSeen = sess.createdAt
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if s.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			row := &store.Session{
				ID:              sess.id,
				ClientInfo:      clientInfo,
				ProtocolVersion: protocolVersion,
				IsActive:        true,
				CreatedAt:       sess.createdAt,
				LastActivity:    sess.createdAt,
			}
			if tenantID != "" {
				row.TenantID = &tenantID
			}
			if tokenID != "" {
				row.TokenID = &tokenID
			}
			if err := s.sink.CreateSession(ctx, row); err != nil {
				s.logger.Debug("persist session failed", "session_id", sess.id, "error", err)
			}
		}()
	}
	return sess
}

func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

// touch records activity on a known session without blocking the request.
func (s *sessionStore) touch(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = time.Now()
	}
	s.mu.Unlock()
	if !ok || s.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.TouchSession(ctx, id, time.Now()); err != nil {
			s.logger.Debug("touch session failed", "session_id", id, "error", err)
		}
	}()
}

func (s *sessionStore) end(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if existed && s.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.sink.EndSession(ctx, id); err != nil {
				s.logger.Debug("end session failed", "session_id", id, "error", err)
			}
		}()
	}
	return existed
}

// sweep ends every session idle since before the cutoff and returns how many
// were closed. Clients holding a swept id keep working; the next initialize
// just mints them a fresh session.
func (s *sessionStore) sweep(cutoff time.Time) int {
	s.mu.RLock()
	var stale []string
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.end(id)
	}
	return len(stale)
}
