// Package sessions provides in-memory session management for live chat
// widget previews.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentoven/chatwidget/internal/chat"
	"github.com/agentoven/chatwidget/pkg/contracts"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NotFoundError is returned when a session id is unknown.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "session not found: " + e.ID
}

// MemorySessionStore is a thread-safe in-memory registry of chat sessions.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Orchestrator // key: session ID
	engine   contracts.ResponseEngine
	opts     chat.Options
}

// NewMemorySessionStore creates a store whose sessions reply with engine.
func NewMemorySessionStore(engine contracts.ResponseEngine, opts chat.Options) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*chat.Orchestrator),
		engine:   engine,
		opts:     opts,
	}
}

// Create starts a new session for cfg. An empty id generates one.
func (s *MemorySessionStore) Create(ctx context.Context, id string, cfg models.WidgetConfig) (*chat.Orchestrator, error) {
	if id == "" {
		id = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already exists", id)
	}
	o := chat.New(ctx, id, s.engine, cfg, s.opts)
	s.sessions[id] = o

	log.Info().Str("session", id).Str("business", cfg.Business.Name).Msg("Chat session created")
	return o, nil
}

// Get retrieves a session by ID.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*chat.Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.sessions[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return o, nil
}

// List returns snapshots of all sessions, oldest first.
func (s *MemorySessionStore) List(_ context.Context) []models.Session {
	s.mu.RLock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, o := range s.sessions {
		out = append(out, o.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete closes and removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	o, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return &NotFoundError{ID: id}
	}
	o.Close()
	log.Info().Str("session", id).Msg("Chat session deleted")
	return nil
}

// Close closes every session.
func (s *MemorySessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.sessions {
		o.Close()
		delete(s.sessions, id)
	}
}
