package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// RedisStore implements orchestrator.Store against Redis using the exact key
// layout spec.md §6 names: session:{id} hash, sessions:active set,
// session:{id}:history list, conversation:{id} hash.
type RedisStore struct {
	client     *redis.Client
	maxHistory int
}

func NewRedisStore(client *redis.Client, maxHistory int) *RedisStore {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &RedisStore{client: client, maxHistory: maxHistory}
}

func sessionKey(id string) string      { return "session:" + id }
func historyKey(id string) string      { return "session:" + id + ":history" }
func conversationKey(id string) string { return "conversation:" + id }

const activeSessionsKey = "sessions:active"

func (s *RedisStore) CreateSession(ctx context.Context, userID string) (*orchestrator.Session, error) {
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

	fields := map[string]interface{}{
		"session_id":    sess.ID,
		"state":         string(sess.State),
		"created_at":    sess.CreatedAt.Format(time.RFC3339Nano),
		"last_activity": sess.LastActivity.Format(time.RFC3339Nano),
		"idle_timeout":  strconv.Itoa(int(sess.IdleTimeout.Seconds())),
		"max_duration":  strconv.Itoa(int(sess.MaxDuration.Seconds())),
		"user_id":       sess.UserID,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(sess.ID), fields)
	pipe.SAdd(ctx, activeSessionsKey, sess.ID)
	pipe.Expire(ctx, sessionKey(sess.ID), sess.MaxDuration+60*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*orchestrator.Session, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(data) == 0 {
		return nil, orchestrator.ErrUnknownSession
	}
	return decodeSession(id, data)
}

func decodeSession(id string, data map[string]string) (*orchestrator.Session, error) {
	state := orchestrator.SessionState(data["state"])
	if !state.Valid() {
		return nil, orchestrator.ErrInvalidState
	}
	created, _ := time.Parse(time.RFC3339Nano, data["created_at"])
	lastActivity, _ := time.Parse(time.RFC3339Nano, data["last_activity"])
	idleSec, _ := strconv.Atoi(data["idle_timeout"])
	maxSec, _ := strconv.Atoi(data["max_duration"])
	return &orchestrator.Session{
		ID:           id,
		State:        state,
		CreatedAt:    created,
		LastActivity: lastActivity,
		IdleTimeout:  time.Duration(idleSec) * time.Second,
		MaxDuration:  time.Duration(maxSec) * time.Second,
		UserID:       data["user_id"],
		Metadata:     map[string]string{},
	}, nil
}

func (s *RedisStore) TouchSession(ctx context.Context, id string) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.client.HSet(ctx, sessionKey(id), "last_activity", now.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if sess.State == orchestrator.SessionNew || sess.State == orchestrator.SessionIdle {
		return s.SetSessionState(ctx, id, orchestrator.SessionActive)
	}
	return nil
}

func (s *RedisStore) SetSessionState(ctx context.Context, id string, state orchestrator.SessionState) error {
	if !state.Valid() {
		return orchestrator.ErrInvalidState
	}
	if err := s.client.HSet(ctx, sessionKey(id), "state", string(state)).Err(); err != nil {
		return fmt.Errorf("set session state: %w", err)
	}
	if state == orchestrator.SessionClosed {
		if err := s.client.SRem(ctx, activeSessionsKey, id).Err(); err != nil {
			return fmt.Errorf("remove from active set: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) CloseSession(ctx context.Context, id string) error {
	if err := s.SetSessionState(ctx, id, orchestrator.SessionClosed); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Expire(ctx, sessionKey(id), 86400*time.Second)
	pipe.Expire(ctx, historyKey(id), 86400*time.Second)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("close session expirations: %w", err)
	}
	return nil
}

func (s *RedisStore) ActiveSessionIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, activeSessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("active session ids: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) GetConversation(ctx context.Context, id string) (*orchestrator.Conversation, error) {
	data, err := s.client.HGetAll(ctx, conversationKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if len(data) == 0 {
		return nil, orchestrator.ErrUnknownSession
	}
	return decodeConversation(id, data)
}

func decodeConversation(id string, data map[string]string) (*orchestrator.Conversation, error) {
	state := orchestrator.ConversationState(data["state"])
	if !state.Valid() {
		return nil, orchestrator.ErrInvalidState
	}
	turns, _ := strconv.Atoi(data["turn_count"])
	clar, _ := strconv.Atoi(data["clarification_count"])
	silence, _ := strconv.Atoi(data["silence_prompts"])
	created, _ := time.Parse(time.RFC3339Nano, data["created_at"])
	updated, _ := time.Parse(time.RFC3339Nano, data["updated_at"])
	return &orchestrator.Conversation{
		SessionID:          id,
		State:              state,
		TurnCount:          turns,
		ClarificationCount: clar,
		SilencePrompts:     silence,
		LastUserInput:      data["last_user_input"],
		LastIntent:         data["last_intent"],
		CreatedAt:          created,
		UpdatedAt:          updated,
	}, nil
}

func (s *RedisStore) InitConversation(ctx context.Context, id string) (*orchestrator.Conversation, error) {
	now := time.Now()
	conv := &orchestrator.Conversation{
		SessionID: id,
		State:     orchestrator.StateInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *RedisStore) SaveConversation(ctx context.Context, c *orchestrator.Conversation) error {
	fields := map[string]interface{}{
		"state":               string(c.State),
		"turn_count":          strconv.Itoa(c.TurnCount),
		"clarification_count": strconv.Itoa(c.ClarificationCount),
		"silence_prompts":     strconv.Itoa(c.SilencePrompts),
		"last_user_input":     c.LastUserInput,
		"last_intent":         c.LastIntent,
		"created_at":          c.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":          c.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, conversationKey(c.SessionID), fields).Err(); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendHistory(ctx context.Context, id string, msg orchestrator.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal history message: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, historyKey(id), payload)
	pipe.LTrim(ctx, historyKey(id), 0, int64(s.maxHistory-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, id string, limit int) ([]orchestrator.Message, error) {
	if limit <= 0 || limit > s.maxHistory {
		limit = s.maxHistory
	}
	raw, err := s.client.LRange(ctx, historyKey(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	// Stored newest-first; reverse into chronological order, same as the
	// original session manager's reversed() read.
	out := make([]orchestrator.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m orchestrator.Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
