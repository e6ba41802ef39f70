package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, 50)
}

func TestRedisStoreSessionRoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "caller-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State != orchestrator.SessionNew || got.UserID != "caller-1" {
		t.Errorf("unexpected session round-trip: %+v", got)
	}

	if err := s.TouchSession(ctx, sess.ID); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	got, err = s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State != orchestrator.SessionActive {
		t.Errorf("expected ACTIVE after touch, got %s", got.State)
	}
}

func TestRedisStoreCloseRemovesFromActiveSet(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	sess, _ := s.CreateSession(ctx, "caller-1")

	ids, err := s.ActiveSessionIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != sess.ID {
		t.Fatalf("expected [%s] active, got %v", sess.ID, ids)
	}

	if err := s.CloseSession(ctx, sess.ID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	ids, err = s.ActiveSessionIDs(ctx)
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no active sessions after close, got %v", ids)
	}
}

func TestRedisStoreHistoryOrderAndTrim(t *testing.T) {
	s := newTestRedisStore(t)
	s.maxHistory = 2
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "caller-1")

	_ = s.AppendHistory(ctx, sess.ID, orchestrator.Message{Role: "user", Content: "one"})
	_ = s.AppendHistory(ctx, sess.ID, orchestrator.Message{Role: "assistant", Content: "two"})
	_ = s.AppendHistory(ctx, sess.ID, orchestrator.Message{Role: "user", Content: "three"})

	history, err := s.History(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected history trimmed to maxHistory=2, got %d entries", len(history))
	}
	if history[0].Content != "two" || history[1].Content != "three" {
		t.Errorf("expected chronological [two, three], got [%s, %s]", history[0].Content, history[1].Content)
	}
}

func TestRedisStoreConversationRoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "caller-1")

	conv, err := s.InitConversation(ctx, sess.ID)
	if err != nil {
		t.Fatalf("InitConversation: %v", err)
	}
	if conv.State != orchestrator.StateInit {
		t.Errorf("expected INIT, got %s", conv.State)
	}

	conv.State = orchestrator.StateListening
	conv.TurnCount = 4
	if err := s.SaveConversation(ctx, conv); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	got, err := s.GetConversation(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.State != orchestrator.StateListening || got.TurnCount != 4 {
		t.Errorf("expected saved state to round-trip, got %+v", got)
	}
}
