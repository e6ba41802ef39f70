package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/smilecare/ivr-core/pkg/audio"
	"github.com/smilecare/ivr-core/pkg/prompts"
)

// minTurnBytes is the 100ms noise floor below which a finished turn's buffer
// is discarded rather than sent to ASR (spec.md §4.E step 5).
const minTurnBytes = 3200

// OutboundMessage is one frame the Session Orchestrator wants written back
// to the client, over whichever transport the caller wires (WebSocket, in
// this repo's pkg/httpapi). Fields are tagged for direct JSON encoding;
// zero-value fields are simply omitted.
type OutboundMessage struct {
	Type              string  `json:"type"`
	Text              string  `json:"text,omitempty"`
	Audio             string  `json:"audio,omitempty"`
	ConversationState string  `json:"conversation_state,omitempty"`
	ShouldEnd         bool    `json:"should_end,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
	Language          string  `json:"language,omitempty"`
	Action            string  `json:"action,omitempty"`
	Message           string  `json:"message,omitempty"`
}

// SessionOrchestrator drives one connection's worth of the per-connection
// loop in spec.md §4.E: it owns the Turn-Taking Engine instance for this
// call, tracks barge-in and bot-speaking state, and calls out to the
// Dialog Engine and the STT/TTS providers at each turn boundary. One
// instance per active call, never shared across sessions.
type SessionOrchestrator struct {
	sessionID string

	store  Store
	stt    STTProvider
	llm    LLMProvider
	tts    TTSProvider
	dialog *DialogEngine
	turn   *TurnTakingEngine
	router *ConfidenceRouter
	cfg    Config
	log    Logger

	pcmBuf []byte

	botSpeaking      bool
	botSpeakingUntil time.Time
	bargeInStreak    int
	nudgeCount       int
}

// NewSessionOrchestrator wires one call's components together. vad backs a
// fresh TurnTakingEngine scoped to this connection; the engine is not safe
// for concurrent use so each call gets its own.
func NewSessionOrchestrator(sessionID string, store Store, stt STTProvider, llm LLMProvider, tts TTSProvider, vad *FrameVAD, cfg Config, log Logger) *SessionOrchestrator {
	if log == nil {
		log = &NoOpLogger{}
	}
	router := NewConfidenceRouter(cfg.Router)

	// HandleAudio always slices inbound PCM into audio.FrameBytes (20ms)
	// frames before handing them to the Turn-Taking Engine one at a time, so
	// the engine's chunk cadence must match regardless of what ChunkMs the
	// caller's Config otherwise carries.
	turnCfg := cfg.Turn
	turnCfg.ChunkMs = 20

	return &SessionOrchestrator{
		sessionID: sessionID,
		store:     store,
		stt:       stt,
		llm:       llm,
		tts:       tts,
		dialog:    NewDialogEngine(store, router, llm, cfg, log),
		turn:      NewTurnTakingEngine(vad, turnCfg),
		router:    router,
		cfg:       cfg,
		log:       log,
	}
}

// Start implements spec.md §4.E step 1: validate the session, initialize the
// conversation if needed, and speak the greeting.
func (o *SessionOrchestrator) Start(ctx context.Context) (*OutboundMessage, error) {
	sess, err := o.store.GetSession(ctx, o.sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSession, err)
	}
	if sess.State == SessionClosed {
		return nil, ErrSessionClosed
	}

	conv, err := o.store.GetConversation(ctx, o.sessionID)
	if err != nil || conv == nil {
		conv, err = o.store.InitConversation(ctx, o.sessionID)
		if err != nil {
			return nil, err
		}
	}
	if conv.State != StateInit {
		return nil, nil
	}

	turn, err := o.dialog.Start(ctx, o.sessionID)
	if err != nil {
		return nil, err
	}
	return o.speak(ctx, turn)
}

// HandlePing answers a control ping (spec.md §4.E step 2).
func (o *SessionOrchestrator) HandlePing() OutboundMessage {
	return OutboundMessage{Type: "pong"}
}

// HandleAudio routes one inbound binary frame: legacy container-encoded
// audio is transcribed directly with no turn-taking; raw PCM is appended to
// the running buffer and sliced into engine frames (spec.md §4.E steps 2-3).
func (o *SessionOrchestrator) HandleAudio(ctx context.Context, data []byte) ([]OutboundMessage, error) {
	if audio.IsLegacyContainer(data) {
		return o.handleLegacyBlob(ctx, data)
	}

	o.pcmBuf = append(o.pcmBuf, data...)
	var frames [][]byte
	frames, o.pcmBuf = audio.SliceFrames(o.pcmBuf)

	var out []OutboundMessage
	for _, frame := range frames {
		msgs, err := o.handleFrame(ctx, frame)
		if err != nil {
			return out, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

func (o *SessionOrchestrator) handleLegacyBlob(ctx context.Context, blob []byte) ([]OutboundMessage, error) {
	return o.runTurn(ctx, blob)
}

// handleFrame implements the barge-in check (spec.md §4.E step 4) and, while
// no barge-in is active, feeds the frame to the Turn-Taking Engine.
func (o *SessionOrchestrator) handleFrame(ctx context.Context, frame []byte) ([]OutboundMessage, error) {
	if o.botSpeaking && !time.Now().Before(o.botSpeakingUntil) {
		o.botSpeaking = false
		o.bargeInStreak = 0
	}
	if o.botSpeaking {
		prob := o.turn.vad.Probability(frame)
		if prob >= 0.6 {
			o.bargeInStreak++
		} else {
			o.bargeInStreak = 0
		}
		if o.bargeInStreak >= 2 {
			o.botSpeaking = false
			o.bargeInStreak = 0
			return []OutboundMessage{{Type: "barge_in"}}, nil
		}
		return nil, nil
	}

	event := o.turn.ProcessChunk(frame)
	if event == nil {
		return nil, nil
	}

	switch event.Type {
	case EventTurnEnd:
		return o.onTurnEnd(ctx, event.Buffer)
	case EventNudge:
		return o.onNudge(ctx)
	case EventComfort:
		return o.onFillerLine(ctx, "comfort")
	case EventContinuationCue:
		out, err := o.onFillerLine(ctx, "continuation")
		o.turn.FinalizeTurn()
		return out, err
	default:
		return nil, nil
	}
}

// onTurnEnd implements spec.md §4.E step 5.
func (o *SessionOrchestrator) onTurnEnd(ctx context.Context, buf []byte) ([]OutboundMessage, error) {
	if len(buf) < minTurnBytes {
		o.turn.FinalizeTurn()
		return nil, nil
	}
	return o.runTurn(ctx, audio.NewWavBuffer(buf, o.cfg.SampleRate))
}

// runTurn transcribes wav (a WAV-wrapped PCM turn, or a legacy container
// blob passed through unchanged), checks linguistic completeness, and either
// waits for more speech or hands the result to the Dialog Engine.
func (o *SessionOrchestrator) runTurn(ctx context.Context, wav []byte) ([]OutboundMessage, error) {
	result, err := o.stt.Transcribe(ctx, wav, LanguageEn)
	if err != nil {
		o.log.Warn("transcription failed", "sessionID", o.sessionID, "error", err)
		o.turn.FinalizeTurn()
		return nil, nil
	}

	if result.Text != "" {
		complete, cue := o.dialog.CheckLinguisticCompleteness(ctx, result.Text)
		if !complete {
			o.turn.TurnEndIncomplete()
			return []OutboundMessage{{Type: "response", Text: cue, ConversationState: string(StateListening)}}, nil
		}
	}
	o.turn.FinalizeTurn()

	if result.Text == "" || result.Confidence < 0.1 {
		o.log.Debug("skipping low-confidence or empty ASR result", "sessionID", o.sessionID)
		return nil, nil
	}

	return o.processASR(ctx, result)
}

// processASR implements spec.md §4.E step 6: surface the transcription,
// then drive the dialog engine and speak its reply.
func (o *SessionOrchestrator) processASR(ctx context.Context, result ASRResult) ([]OutboundMessage, error) {
	action, _ := o.router.Route(result.Text, result.Confidence)

	out := []OutboundMessage{{
		Type:       "transcription",
		Text:       result.Text,
		Confidence: result.Confidence,
		Language:   string(result.Language),
		Action:     string(action),
	}}

	turn, err := o.dialog.ProcessASRResult(ctx, o.sessionID, result)
	if err != nil {
		return out, err
	}

	if turn.Response == "" && turn.State == StateResponding {
		reply, err := o.generateReply(ctx, result.Text)
		if err != nil {
			o.log.Error("llm reply generation failed", "sessionID", o.sessionID, "error", err)
			turn.Response = prompts.Escalation
			turn.ShouldEnd = true
		} else {
			turn.Response = reply
		}
	}

	msg, err := o.speak(ctx, turn)
	if err != nil {
		return out, err
	}
	if msg != nil {
		out = append(out, *msg)
	}
	return out, nil
}

// generateReply implements the LLM prompt assembly spec.md §4.E describes:
// the clinic persona system prompt plus truncated history plus the current
// user text, then records both turns to history.
func (o *SessionOrchestrator) generateReply(ctx context.Context, userText string) (string, error) {
	history, err := o.store.History(ctx, o.sessionID, 2*o.cfg.MaxTurns)
	if err != nil {
		history = nil
	}

	reply, err := o.llm.Complete(ctx, prompts.ForSession(""), history, userText)
	if err != nil {
		return "", err
	}

	now := time.Now()
	_ = o.store.AppendHistory(ctx, o.sessionID, Message{Role: "user", Content: userText, Timestamp: now})
	_ = o.store.AppendHistory(ctx, o.sessionID, Message{Role: "assistant", Content: reply, Timestamp: now})
	return reply, nil
}

// ProcessOneShot implements the non-streaming /voice path (spec.md §6): the
// caller already has a complete utterance transcribed elsewhere, so this
// skips the Turn-Taking Engine entirely and drives the Dialog Engine
// directly off the given result.
func (o *SessionOrchestrator) ProcessOneShot(ctx context.Context, result ASRResult) ([]OutboundMessage, error) {
	if result.Text == "" || result.Confidence < 0.1 {
		return nil, nil
	}
	return o.processASR(ctx, result)
}

// EnsureConversation initializes the conversation row for this session if one
// does not already exist, without speaking the greeting. Used by transports
// such as the one-shot /voice endpoint that never call Start.
func (o *SessionOrchestrator) EnsureConversation(ctx context.Context) error {
	conv, err := o.store.GetConversation(ctx, o.sessionID)
	if err == nil && conv != nil {
		return nil
	}
	_, err = o.store.InitConversation(ctx, o.sessionID)
	return err
}

// onNudge implements spec.md §4.E step 7: suppress past three nudges per
// call, otherwise speak the nudge line.
func (o *SessionOrchestrator) onNudge(ctx context.Context) ([]OutboundMessage, error) {
	if o.nudgeCount >= 3 {
		return nil, nil
	}
	o.nudgeCount++
	return o.onFillerLine(ctx, "nudge")
}

// onFillerLine synthesizes and marks bot_speaking for a NUDGE/COMFORT/
// CONTINUATION_CUE filler line (spec.md §4.E steps 7-8).
func (o *SessionOrchestrator) onFillerLine(ctx context.Context, kind string) ([]OutboundMessage, error) {
	var text string
	switch kind {
	case "nudge":
		text = prompts.NudgeMessage
	case "comfort":
		text = prompts.ComfortMessage
	default:
		text = prompts.ContinuationCue
	}

	audioBytes, err := o.tts.Synthesize(ctx, text, VoiceF1, LanguageEn)
	if err != nil {
		o.log.Warn("filler line synthesis failed", "sessionID", o.sessionID, "kind", kind, "error", err)
		return nil, nil
	}
	o.markSpeaking(ctx, audioBytes)

	return []OutboundMessage{{
		Type:              "response",
		Text:              text,
		Audio:             encodeAudio(audioBytes),
		ConversationState: string(StateListening),
	}}, nil
}

// speak synthesizes turn.Response (if any) and marks bot_speaking, returning
// the outbound "response" message.
func (o *SessionOrchestrator) speak(ctx context.Context, turn Turn) (*OutboundMessage, error) {
	if turn.Response == "" {
		return nil, nil
	}
	audioBytes, err := o.tts.Synthesize(ctx, turn.Response, VoiceF1, LanguageEn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTTSFailed, err)
	}
	o.markSpeaking(ctx, audioBytes)

	return &OutboundMessage{
		Type:              "response",
		Text:              turn.Response,
		Audio:             encodeAudio(audioBytes),
		ConversationState: string(turn.State),
		ShouldEnd:         turn.ShouldEnd,
	}, nil
}

func (o *SessionOrchestrator) markSpeaking(ctx context.Context, audioBytes []byte) {
	d, err := o.tts.Duration(ctx, audioBytes)
	if err != nil {
		d = 0
	}
	o.botSpeaking = true
	o.botSpeakingUntil = time.Now().Add(d)
}

// Close marks this call's session CLOSED in the store via
// Store.CloseSession; it releases no other resources.
func (o *SessionOrchestrator) Close(ctx context.Context) error {
	return o.store.CloseSession(ctx, o.sessionID)
}

func encodeAudio(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
