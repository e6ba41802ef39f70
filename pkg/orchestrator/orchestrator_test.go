package orchestrator_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	. "github.com/smilecare/ivr-core/pkg/orchestrator"
	"github.com/smilecare/ivr-core/pkg/prompts"
	"github.com/smilecare/ivr-core/pkg/store"
)

type fakeSTT struct {
	result ASRResult
	err    error
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, lang Language) (ASRResult, error) {
	return f.result, f.err
}
func (f *fakeSTT) Name() string { return "fake_stt" }

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt string, history []Message, userText string) (string, error) {
	return f.reply, f.err
}
func (f *fakeLLM) Name() string { return "fake_llm" }

type fakeTTS struct {
	duration time.Duration
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error) {
	return []byte("audio:" + text), nil
}
func (f *fakeTTS) Duration(ctx context.Context, audio []byte) (time.Duration, error) {
	return f.duration, nil
}
func (f *fakeTTS) Name() string { return "fake_tts" }

func newTestSession(t *testing.T, s Store) string {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), "caller-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess.ID
}

func silentFrame() []byte {
	return make([]byte, FrameBytes)
}

func loudFrame() []byte {
	buf := make([]byte, FrameBytes)
	for i := 0; i < len(buf); i += 2 {
		buf[i] = 0xFF
		buf[i+1] = 0x7F
	}
	return buf
}

func TestSessionOrchestratorStartGreets(t *testing.T) {
	s := store.NewMemoryStore(50)
	sessionID := newTestSession(t, s)
	cfg := DefaultConfig()
	vad := NewFrameVAD(nil)

	orch := NewSessionOrchestrator(sessionID, s, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, vad, cfg, nil)

	msg, err := orch.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if msg == nil || msg.Type != "response" {
		t.Fatalf("expected a response message, got %+v", msg)
	}
	if msg.ConversationState != string(StateGreeting) {
		t.Errorf("expected GREETING, got %s", msg.ConversationState)
	}
}

func TestSessionOrchestratorPing(t *testing.T) {
	s := store.NewMemoryStore(50)
	sessionID := newTestSession(t, s)
	orch := NewSessionOrchestrator(sessionID, s, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, NewFrameVAD(nil), DefaultConfig(), nil)

	if got := orch.HandlePing(); got.Type != "pong" {
		t.Errorf("expected pong, got %s", got.Type)
	}
}

func TestSessionOrchestratorBargeIn(t *testing.T) {
	s := store.NewMemoryStore(50)
	sessionID := newTestSession(t, s)
	// The greeting's playback must still be running when the loud frames
	// arrive, otherwise the bot is no longer speaking and there is nothing to
	// barge in on.
	orch := NewSessionOrchestrator(sessionID, s, &fakeSTT{}, &fakeLLM{}, &fakeTTS{duration: 5 * time.Second}, NewFrameVAD(nil), DefaultConfig(), nil)

	if _, err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	msgs, err := orch.HandleAudio(context.Background(), loudFrame())
	if err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("single loud frame should not barge in yet, got %+v", msgs)
	}

	msgs, err = orch.HandleAudio(context.Background(), loudFrame())
	if err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != "barge_in" {
		t.Fatalf("expected barge_in after two consecutive loud frames, got %+v", msgs)
	}
}

func TestSessionOrchestratorNudgeSuppressedAfterThree(t *testing.T) {
	s := store.NewMemoryStore(50)
	sessionID := newTestSession(t, s)
	orch := NewSessionOrchestrator(sessionID, s, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, NewFrameVAD(nil), DefaultConfig(), nil)

	if _, err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nudges := 0
	// Feed enough silence to trigger several NUDGE events; the engine runs on
	// 20ms frames, so DefaultTurnConfig's NudgeMs (1500ms) fires every 75
	// silent frames in IDLE, and 400 frames produce 5 NUDGE events.
	for i := 0; i < 400; i++ {
		msgs, err := orch.HandleAudio(context.Background(), silentFrame())
		if err != nil {
			t.Fatalf("HandleAudio: %v", err)
		}
		for _, m := range msgs {
			if m.Type == "response" && m.Text == prompts.NudgeMessage {
				nudges++
			}
		}
	}
	if nudges > 3 {
		t.Errorf("expected at most 3 nudge lines per call, got %d", nudges)
	}
}

func TestSessionOrchestratorProcessOneShot(t *testing.T) {
	s := store.NewMemoryStore(50)
	sessionID := newTestSession(t, s)
	orch := NewSessionOrchestrator(sessionID, s, &fakeSTT{}, &fakeLLM{reply: "See you at 3pm."}, &fakeTTS{}, NewFrameVAD(nil), DefaultConfig(), nil)

	if err := orch.EnsureConversation(context.Background()); err != nil {
		t.Fatalf("EnsureConversation: %v", err)
	}

	result := ASRResult{Text: "book me for 3pm", Confidence: 0.9, Language: LanguageEn}
	msgs, err := orch.ProcessOneShot(context.Background(), result)
	if err != nil {
		t.Fatalf("ProcessOneShot: %v", err)
	}

	var sawResponse bool
	for _, m := range msgs {
		if m.Type == "response" {
			sawResponse = true
		}
	}
	if !sawResponse {
		t.Fatalf("expected a response message, got %+v", msgs)
	}
}

func TestSessionOrchestratorLegacyContainerSkipsTurnTaking(t *testing.T) {
	s := store.NewMemoryStore(50)
	sessionID := newTestSession(t, s)
	stt := &fakeSTT{result: ASRResult{Text: "book an appointment", Confidence: 0.95, Language: LanguageEn}}
	orch := NewSessionOrchestrator(sessionID, s, stt, &fakeLLM{reply: "Sure, when works for you?"}, &fakeTTS{}, NewFrameVAD(nil), DefaultConfig(), nil)

	if _, err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	blob := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, bytes.Repeat([]byte{0x11}, 4000)...)
	msgs, err := orch.HandleAudio(context.Background(), blob)
	if err != nil {
		t.Fatalf("HandleAudio: %v", err)
	}

	var sawTranscription bool
	for _, m := range msgs {
		if m.Type == "transcription" {
			sawTranscription = true
			if m.Text != "book an appointment" {
				t.Errorf("unexpected transcription text: %s", m.Text)
			}
		}
	}
	if !sawTranscription {
		t.Fatalf("expected a transcription message, got %+v", msgs)
	}
}
