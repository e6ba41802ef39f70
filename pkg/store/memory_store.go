// Package store implements orchestrator.Store against Redis and, for the
// "no store configured" degraded mode spec.md §6 describes, against an
// in-memory map guarded by a mutex.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// MemoryStore is a process-local implementation of orchestrator.Store. It
// never persists across restarts and is meant for local development and
// tests, mirroring the teacher's habit of swapping concrete types behind a
// narrow provider interface.
type MemoryStore struct {
	mu            sync.Mutex
	sessions      map[string]*orchestrator.Session
	conversations map[string]*orchestrator.Conversation
	history       map[string][]orchestrator.Message
	maxHistory    int
}

func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &MemoryStore{
		sessions:      make(map[string]*orchestrator.Session),
		conversations: make(map[string]*orchestrator.Conversation),
		history:       make(map[string][]orchestrator.Message),
		maxHistory:    maxHistory,
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context, userID string) (*orchestrator.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess := &orchestrator.Session{
		ID:           uuid.NewString(),
		State:        orchestrator.SessionNew,
		CreatedAt:    now,
		LastActivity: now,
		IdleTimeout:  30 * time.Second,
		MaxDuration:  600 * time.Second,
		UserID:       userID,
		Metadata:     map[string]string{},
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*orchestrator.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, orchestrator.ErrUnknownSession
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return orchestrator.ErrUnknownSession
	}
	sess.LastActivity = time.Now()
	if sess.State == orchestrator.SessionNew || sess.State == orchestrator.SessionIdle {
		sess.State = orchestrator.SessionActive
	}
	return nil
}

func (s *MemoryStore) SetSessionState(ctx context.Context, id string, state orchestrator.SessionState) error {
	if !state.Valid() {
		return orchestrator.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return orchestrator.ErrUnknownSession
	}
	sess.State = state
	return nil
}

func (s *MemoryStore) CloseSession(ctx context.Context, id string) error {
	return s.SetSessionState(ctx, id, orchestrator.SessionClosed)
}

func (s *MemoryStore) ActiveSessionIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.State == orchestrator.SessionActive || sess.State == orchestrator.SessionNew || sess.State == orchestrator.SessionIdle {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*orchestrator.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, orchestrator.ErrUnknownSession
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) InitConversation(ctx context.Context, id string) (*orchestrator.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	conv := &orchestrator.Conversation{
		SessionID: id,
		State:     orchestrator.StateInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[id] = conv
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) SaveConversation(ctx context.Context, c *orchestrator.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversations[c.SessionID] = &cp
	return nil
}

func (s *MemoryStore) AppendHistory(ctx context.Context, id string, msg orchestrator.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Newest-first, trimmed to maxHistory, mirroring the Redis LPUSH+LTRIM
	// layout so both implementations expose the same chronological read.
	h := append([]orchestrator.Message{msg}, s.history[id]...)
	if len(h) > s.maxHistory {
		h = h[:s.maxHistory]
	}
	s.history[id] = h
	return nil
}

func (s *MemoryStore) History(ctx context.Context, id string, limit int) ([]orchestrator.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[id]
	if limit > 0 && limit < len(h) {
		h = h[:limit]
	}
	// Reverse newest-first storage into chronological order.
	out := make([]orchestrator.Message, len(h))
	for i, m := range h {
		out[len(h)-1-i] = m
	}
	return out, nil
}
