package orchestrator

import (
	"context"
	"time"
)

// Logger is the narrow logging seam threaded through every component
// constructor. Production code backs it with slog; tests use NoOpLogger.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. It is the default so callers never need a
// nil check before logging.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// Language is a short vendor-agnostic language code.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
)

// Voice selects a TTS persona.
type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceM1 Voice = "M1"
)

// ASRResult is the external ASR collaborator's output (spec.md §3). A zero
// Confidence denotes either silence or an upstream failure; callers tell the
// two apart by checking Text.
type ASRResult struct {
	Text       string
	Confidence float64
	Language   Language
}

// STTProvider is the external speech-to-text collaborator.
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, lang Language) (ASRResult, error)
	Name() string
}

// Message is one turn of conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LLMProvider is the external reply-generation collaborator.
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt string, history []Message, userText string) (string, error)
	Name() string
}

// TTSProvider is the external speech-synthesis collaborator.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error)
	// Duration reports the playback length of previously synthesized audio,
	// used to schedule how long the bot is considered to be speaking.
	Duration(ctx context.Context, audio []byte) (time.Duration, error)
	Name() string
}

// SessionState is the closed sum type for session lifecycle (spec.md §3).
type SessionState string

const (
	SessionNew    SessionState = "NEW"
	SessionActive SessionState = "ACTIVE"
	SessionIdle   SessionState = "IDLE"
	SessionClosed SessionState = "CLOSED"
)

// Valid reports whether s is one of the known session states. Store
// implementations refuse unknown state strings rather than silently
// defaulting.
func (s SessionState) Valid() bool {
	switch s {
	case SessionNew, SessionActive, SessionIdle, SessionClosed:
		return true
	}
	return false
}

// ConversationState is the closed sum type for the dialog state machine
// (spec.md §3, §4.D).
type ConversationState string

const (
	StateInit       ConversationState = "INIT"
	StateGreeting   ConversationState = "GREETING"
	StateListening  ConversationState = "LISTENING"
	StateProcessing ConversationState = "PROCESSING"
	StateResponding ConversationState = "RESPONDING"
	StateClarifying ConversationState = "CLARIFYING"
	StateError      ConversationState = "ERROR"
	StateEnd        ConversationState = "END"
)

func (s ConversationState) Valid() bool {
	switch s {
	case StateInit, StateGreeting, StateListening, StateProcessing,
		StateResponding, StateClarifying, StateError, StateEnd:
		return true
	}
	return false
}

// InputQuality classifies a transcribed user utterance (spec.md §4.D).
type InputQuality string

const (
	InputEmpty   InputQuality = "EMPTY"
	InputUnclear InputQuality = "UNCLEAR"
	InputClear   InputQuality = "CLEAR"
)

// ConfidenceAction is the Confidence Router's verdict (spec.md §4.C).
type ConfidenceAction string

const (
	ActionAccept  ConfidenceAction = "ACCEPT"
	ActionClarify ConfidenceAction = "CLARIFY"
	ActionReject  ConfidenceAction = "REJECT"
)

// TurnEventType enumerates the events the Turn-Taking Engine emits
// (spec.md §4.B).
type TurnEventType string

const (
	EventTurnEnd         TurnEventType = "TURN_END"
	EventNudge           TurnEventType = "NUDGE"
	EventComfort         TurnEventType = "COMFORT"
	EventContinuationCue TurnEventType = "CONTINUATION_CUE"
)

// TurnEvent is emitted by TurnTakingEngine.ProcessChunk. Buffer is populated
// only for EventTurnEnd.
type TurnEvent struct {
	Type   TurnEventType
	Buffer []byte
}

// Session is the per-caller lifecycle record (spec.md §3).
type Session struct {
	ID           string
	State        SessionState
	CreatedAt    time.Time
	LastActivity time.Time
	IdleTimeout  time.Duration
	MaxDuration  time.Duration
	UserID       string
	Metadata     map[string]string
}

// IsIdleDue reports whether the session has been quiet long enough to move
// ACTIVE -> IDLE.
func (s *Session) IsIdleDue(now time.Time) bool {
	return now.Sub(s.LastActivity) >= s.IdleTimeout
}

// IsExpired reports whether the session has exceeded its max duration.
func (s *Session) IsExpired(now time.Time) bool {
	return now.Sub(s.CreatedAt) >= s.MaxDuration
}

// Conversation is the per-session dialog-engine record (spec.md §3).
type Conversation struct {
	SessionID          string
	State              ConversationState
	TurnCount          int
	ClarificationCount int
	SilencePrompts     int
	LastUserInput      string
	LastIntent         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Store is the persistence seam for Session, Conversation, and History rows
// (spec.md §6). A Redis-backed implementation and an in-memory fallback both
// satisfy it; nothing in pkg/orchestrator depends on which is wired.
type Store interface {
	CreateSession(ctx context.Context, userID string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string) error
	SetSessionState(ctx context.Context, id string, state SessionState) error
	CloseSession(ctx context.Context, id string) error
	ActiveSessionIDs(ctx context.Context) ([]string, error)

	GetConversation(ctx context.Context, id string) (*Conversation, error)
	InitConversation(ctx context.Context, id string) (*Conversation, error)
	SaveConversation(ctx context.Context, c *Conversation) error

	AppendHistory(ctx context.Context, id string, msg Message) error
	History(ctx context.Context, id string, limit int) ([]Message, error)
}

// Config consolidates the tunable defaults spec.md §6 names. Every field is
// per-session configurable by construction, never a package-level global.
type Config struct {
	SampleRate  int
	IdleTimeout time.Duration
	MaxDuration time.Duration

	MaxTurns           int
	MaxClarifications  int
	MaxSilencePrompts  int
	MaxHistoryMessages int

	Turn   TurnConfig
	Router RouterConfig
}

func DefaultConfig() Config {
	return Config{
		SampleRate:         16000,
		IdleTimeout:        30 * time.Second,
		MaxDuration:        600 * time.Second,
		MaxTurns:           20,
		MaxClarifications:  2,
		MaxSilencePrompts:  2,
		MaxHistoryMessages: 50,
		Turn:               DefaultTurnConfig(),
		Router:             DefaultRouterConfig(),
	}
}
