package orchestrator

import (
	"testing"
	"time"
)

func TestMessage(t *testing.T) {
	msg := Message{Role: "user", Content: "Hello"}
	if msg.Role != "user" {
		t.Errorf("Expected role 'user', got '%s'", msg.Role)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.SampleRate)
	}
	if cfg.MaxTurns != 20 {
		t.Errorf("Expected max turns 20, got %d", cfg.MaxTurns)
	}
	if cfg.MaxClarifications != 2 {
		t.Errorf("Expected max clarifications 2, got %d", cfg.MaxClarifications)
	}
}

func TestSessionStateValid(t *testing.T) {
	if !SessionActive.Valid() {
		t.Error("expected ACTIVE to be valid")
	}
	if SessionState("BOGUS").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestConversationStateValid(t *testing.T) {
	if !StateClarifying.Valid() {
		t.Error("expected CLARIFYING to be valid")
	}
	if ConversationState("NOPE").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestSessionIsIdleDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)
	s := &Session{
		LastActivity: now.Add(-31 * time.Second),
		IdleTimeout:  30 * time.Second,
	}
	if !s.IsIdleDue(now) {
		t.Error("expected session to be idle due")
	}
	s.LastActivity = now
	if s.IsIdleDue(now) {
		t.Error("expected fresh session not to be idle due")
	}
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	s := &Session{
		CreatedAt:   now.Add(-601 * time.Second),
		MaxDuration: 600 * time.Second,
	}
	if !s.IsExpired(now) {
		t.Error("expected session to be expired")
	}
}
