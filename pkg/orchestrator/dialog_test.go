package orchestrator_test

import (
	"context"
	"testing"

	. "github.com/smilecare/ivr-core/pkg/orchestrator"
	"github.com/smilecare/ivr-core/pkg/prompts"
	"github.com/smilecare/ivr-core/pkg/store"
)

func newTestDialogEngine(t *testing.T) (*DialogEngine, Store, string) {
	t.Helper()
	s := store.NewMemoryStore(50)
	sess, err := s.CreateSession(context.Background(), "caller-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	cfg := DefaultConfig()
	router := NewConfidenceRouter(cfg.Router)
	engine := NewDialogEngine(s, router, nil, cfg, nil)
	return engine, s, sess.ID
}

func TestDialogEngineHappyPathBook(t *testing.T) {
	engine, s, sessionID := newTestDialogEngine(t)
	ctx := context.Background()

	if _, err := engine.Start(ctx, sessionID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// GREETING -> LISTENING
	turn, err := engine.ProcessStateTransition(ctx, sessionID, "")
	if err != nil {
		t.Fatalf("ProcessStateTransition: %v", err)
	}
	if turn.State != StateListening {
		t.Fatalf("expected LISTENING after greeting, got %s", turn.State)
	}

	turn, err = engine.ProcessASRResult(ctx, sessionID, ASRResult{Text: "I want to book an appointment", Confidence: 0.9})
	if err != nil {
		t.Fatalf("ProcessASRResult: %v", err)
	}
	if turn.State != StateResponding {
		t.Fatalf("expected RESPONDING for a clear accepted utterance, got %s", turn.State)
	}

	turn, err = engine.ProcessStateTransition(ctx, sessionID, "")
	if err != nil {
		t.Fatalf("ProcessStateTransition: %v", err)
	}
	if turn.State != StateListening {
		t.Fatalf("expected RESPONDING -> LISTENING, got %s", turn.State)
	}

	conv, err := s.GetConversation(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.TurnCount != 1 {
		t.Errorf("expected turn_count 1, got %d", conv.TurnCount)
	}
}

func TestDialogEngineLowConfidenceRejection(t *testing.T) {
	engine, s, sessionID := newTestDialogEngine(t)
	ctx := context.Background()
	if _, err := engine.Start(ctx, sessionID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	turn, err := engine.ProcessASRResult(ctx, sessionID, ASRResult{Text: "mumble", Confidence: 0.1})
	if err != nil {
		t.Fatalf("ProcessASRResult: %v", err)
	}
	if turn.State != StateClarifying {
		t.Fatalf("expected CLARIFYING after REJECT, got %s", turn.State)
	}
	if turn.ShouldEnd {
		t.Error("expected should_end=false after the first clarification")
	}

	conv, err := s.GetConversation(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.ClarificationCount != 1 {
		t.Errorf("expected clarification_count 1, got %d", conv.ClarificationCount)
	}
}

func TestDialogEngineEscalatesAtMaxClarifications(t *testing.T) {
	engine, _, sessionID := newTestDialogEngine(t)
	ctx := context.Background()
	if _, err := engine.Start(ctx, sessionID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var turn Turn
	var err error
	for i := 0; i < DefaultConfig().MaxClarifications; i++ {
		turn, err = engine.ProcessASRResult(ctx, sessionID, ASRResult{Text: "mumble", Confidence: 0.1})
		if err != nil {
			t.Fatalf("ProcessASRResult: %v", err)
		}
	}
	if turn.State != StateError || !turn.ShouldEnd {
		t.Fatalf("expected ERROR + should_end at max clarifications, got %+v", turn)
	}
	if turn.Response != prompts.Escalation {
		t.Errorf("expected escalation line, got %q", turn.Response)
	}
}

func TestDialogEngineSilenceEndsAtMaxPrompts(t *testing.T) {
	engine, _, sessionID := newTestDialogEngine(t)
	ctx := context.Background()
	if _, err := engine.Start(ctx, sessionID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := engine.ProcessStateTransition(ctx, sessionID, ""); err != nil {
		t.Fatalf("ProcessStateTransition: %v", err)
	}

	cfg := DefaultConfig()
	var turn Turn
	var err error
	for i := 0; i <= cfg.MaxSilencePrompts; i++ {
		turn, err = engine.ProcessStateTransition(ctx, sessionID, "")
		if err != nil {
			t.Fatalf("ProcessStateTransition: %v", err)
		}
	}
	if turn.State != StateEnd || !turn.ShouldEnd {
		t.Fatalf("expected END after exceeding max silence prompts, got %+v", turn)
	}
}

func TestCheckLinguisticCompletenessTrailingConjunction(t *testing.T) {
	engine, _, _ := newTestDialogEngine(t)
	complete, cue := engine.CheckLinguisticCompleteness(context.Background(), "I want to book an appointment and")
	if complete {
		t.Error("expected a trailing conjunction to be INCOMPLETE")
	}
	if cue != prompts.ContinuationCue {
		t.Errorf("expected the continuation cue, got %q", cue)
	}
}

func TestCheckLinguisticCompletenessTerminalPunctuation(t *testing.T) {
	engine, _, _ := newTestDialogEngine(t)
	complete, cue := engine.CheckLinguisticCompleteness(context.Background(), "I'd like to book an appointment.")
	if !complete {
		t.Error("expected terminal punctuation to be COMPLETE")
	}
	if cue != "" {
		t.Errorf("expected no cue for a complete utterance, got %q", cue)
	}
}
