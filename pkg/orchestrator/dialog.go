package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/smilecare/ivr-core/pkg/prompts"
)

// incompleteTrailingWords catches the trailing-conjunction shapes that
// usually mean a caller trailed off mid-sentence.
var incompleteTrailingWords = []string{"and", "so", "but", "or", "then"}

// incompleteHangingPhrases are stock openers that almost never stand alone;
// matched against the end of the utterance, not the whole thing, so they
// still catch e.g. "okay so basically".
var incompleteHangingPhrases = []string{
	"i want to", "i need to", "i'd like to", "i'm trying to",
	"so basically", "and then", "but then", "or maybe",
	"i think", "i guess", "maybe", "perhaps",
}

// incompleteShortStarters are aux-led openers that only signal an incomplete
// thought when the whole utterance is very short.
var incompleteShortStarters = []string{"i want", "i need", "can you", "could you", "would you"}

// completenessDomainWords short-circuit the completeness check to COMPLETE
// without an LLM call once the utterance is on-topic and long enough.
var completenessDomainWords = []string{"appointment", "book", "schedule", "time", "date"}

var questionWords = []string{"what", "where", "when", "who", "how", "why"}

// DialogEngine runs the per-session dialog state machine (spec.md §4.D). It
// holds no per-call mutable state itself — everything lives in the Store.
// NewSessionOrchestrator builds one DialogEngine per call.
type DialogEngine struct {
	store  Store
	router *ConfidenceRouter
	llm    LLMProvider
	cfg    Config
	log    Logger
}

func NewDialogEngine(store Store, router *ConfidenceRouter, llm LLMProvider, cfg Config, log Logger) *DialogEngine {
	if log == nil {
		log = &NoOpLogger{}
	}
	return &DialogEngine{store: store, router: router, llm: llm, cfg: cfg, log: log}
}

// Turn is the result of one dialog-engine step: the new state, the line to
// speak (empty means "say nothing"), and whether the call should end.
type Turn struct {
	State     ConversationState
	Response  string
	ShouldEnd bool
}

// Start initializes a fresh conversation and returns the greeting turn.
func (e *DialogEngine) Start(ctx context.Context, sessionID string) (Turn, error) {
	conv, err := e.store.InitConversation(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	conv.State = StateGreeting
	conv.UpdatedAt = time.Now()
	if err := e.store.SaveConversation(ctx, conv); err != nil {
		return Turn{}, err
	}
	return Turn{State: StateGreeting, Response: prompts.Greeting}, nil
}

// ProcessASRResult routes a completed user turn through the Confidence
// Router and then through the dialog state machine (spec.md §4.C + §4.D).
func (e *DialogEngine) ProcessASRResult(ctx context.Context, sessionID string, result ASRResult) (Turn, error) {
	conv, err := e.store.GetConversation(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}

	action, text := e.router.Route(result.Text, result.Confidence)

	switch action {
	case ActionReject:
		return e.handleClarificationNeeded(ctx, conv, "")
	case ActionClarify:
		// The CLARIFY-but-accept boundary: confidence in [0.3, 0.8) is
		// treated as a good-enough transcript and flows through normally;
		// only [0.2, 0.3) actually asks the caller to repeat themselves.
		if result.Confidence >= 0.3 {
			return e.ProcessStateTransition(ctx, sessionID, text)
		}
		return e.handleClarificationNeeded(ctx, conv, text)
	default: // ActionAccept
		return e.ProcessStateTransition(ctx, sessionID, text)
	}
}

func (e *DialogEngine) handleClarificationNeeded(ctx context.Context, conv *Conversation, lastInput string) (Turn, error) {
	conv.ClarificationCount++
	if lastInput != "" {
		conv.LastUserInput = lastInput
	}
	if conv.ClarificationCount >= e.cfg.MaxClarifications {
		conv.State = StateError
		conv.UpdatedAt = time.Now()
		if err := e.store.SaveConversation(ctx, conv); err != nil {
			return Turn{}, err
		}
		return Turn{State: StateError, Response: prompts.Escalation, ShouldEnd: true}, nil
	}
	conv.State = StateClarifying
	conv.UpdatedAt = time.Now()
	if err := e.store.SaveConversation(ctx, conv); err != nil {
		return Turn{}, err
	}
	return Turn{State: StateClarifying, Response: prompts.ClarificationMessage(conv.ClarificationCount)}, nil
}

// ProcessStateTransition drives the core state machine for one user turn.
// userText is the (already-accepted) transcript; an empty string means a
// silent/empty turn (spec.md §4.D).
func (e *DialogEngine) ProcessStateTransition(ctx context.Context, sessionID string, userText string) (Turn, error) {
	conv, err := e.store.GetConversation(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}
	defer func() {
		conv.UpdatedAt = time.Now()
		_ = e.store.SaveConversation(ctx, conv)
	}()

	quality := e.classifyInputQuality(ctx, userText)

	switch conv.State {
	case StateInit:
		conv.State = StateGreeting
		return Turn{State: StateGreeting, Response: prompts.Greeting}, nil

	case StateGreeting:
		conv.State = StateListening
		return Turn{State: StateListening}, nil

	case StateListening, StateClarifying:
		if quality == InputEmpty {
			return e.processSilence(conv)
		}
		conv.LastUserInput = userText
		conv.State = StateProcessing
		return e.transitionFromProcessing(conv, quality, userText)

	case StateProcessing:
		return e.transitionFromProcessing(conv, quality, userText)

	case StateResponding:
		conv.TurnCount++
		if conv.TurnCount >= e.cfg.MaxTurns {
			conv.State = StateEnd
			return Turn{State: StateEnd, Response: prompts.ClosingLine, ShouldEnd: true}, nil
		}
		conv.State = StateListening
		return Turn{State: StateListening}, nil

	case StateError, StateEnd:
		conv.State = StateEnd
		return Turn{State: StateEnd, ShouldEnd: true}, nil

	default:
		conv.State = StateListening
		return Turn{State: StateListening}, nil
	}
}

func (e *DialogEngine) transitionFromProcessing(conv *Conversation, quality InputQuality, userText string) (Turn, error) {
	switch quality {
	case InputEmpty:
		return e.processSilence(conv)
	case InputUnclear:
		conv.ClarificationCount++
		if conv.ClarificationCount >= e.cfg.MaxClarifications {
			conv.State = StateError
			return Turn{State: StateError, Response: prompts.Escalation, ShouldEnd: true}, nil
		}
		conv.State = StateClarifying
		return Turn{State: StateClarifying, Response: prompts.ClarificationMessage(conv.ClarificationCount)}, nil
	default: // InputClear
		conv.State = StateResponding
		return Turn{State: StateResponding}, nil
	}
}

// processSilence implements the pre-increment silence check (spec.md §9,
// resolved in DESIGN.md): the count is tested for the cap *before* the
// increment commits, so the silence that arrives once the count already sits
// at the cap is the one that ends the call (the third, with the default cap
// of 2), and that silence does not increment the count.
func (e *DialogEngine) processSilence(conv *Conversation) (Turn, error) {
	if conv.SilencePrompts >= e.cfg.MaxSilencePrompts {
		conv.State = StateEnd
		return Turn{State: StateEnd, Response: prompts.ClosingLine, ShouldEnd: true}, nil
	}
	conv.SilencePrompts++
	conv.State = StateListening
	return Turn{State: StateListening, Response: prompts.SilencePrompt(conv.SilencePrompts)}, nil
}

// classifyInputQuality implements spec.md §4.D's rule-based-then-LLM input
// quality check.
func (e *DialogEngine) classifyInputQuality(ctx context.Context, text string) InputQuality {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return InputEmpty
	}
	if len(trimmed) < 3 {
		return InputUnclear
	}
	if e.llm == nil {
		return InputClear
	}
	verdict, err := e.llm.Complete(ctx,
		"Reply with exactly one word, CLEAR or UNCLEAR: is the following a clear, understandable request?",
		nil, trimmed)
	if err != nil {
		e.log.Warn("input quality LLM fallback failed, degrading to length heuristic", "error", err)
		if len(trimmed) > 3 {
			return InputClear
		}
		return InputUnclear
	}
	if strings.Contains(strings.ToUpper(verdict), "UNCLEAR") {
		return InputUnclear
	}
	return InputClear
}

// CheckLinguisticCompleteness implements spec.md §4.D's two-tier
// completeness check: cheap rule-based patterns first, an LLM call only for
// genuinely ambiguous residue. A false result additionally carries the
// continuation cue line to speak while waiting for the rest of the thought.
func (e *DialogEngine) CheckLinguisticCompleteness(ctx context.Context, text string) (complete bool, cue string) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if len(lower) < 3 {
		return true, ""
	}

	words := strings.Fields(lower)

	if strings.HasSuffix(lower, "...") || strings.HasSuffix(lower, "..") || strings.HasSuffix(lower, "…") {
		return false, prompts.ContinuationCue
	}
	for _, w := range incompleteTrailingWords {
		if strings.HasSuffix(lower, w) {
			return false, prompts.ContinuationCue
		}
	}
	for _, phrase := range incompleteHangingPhrases {
		if strings.HasSuffix(lower, phrase) {
			return false, prompts.ContinuationCue
		}
	}
	for _, qw := range questionWords {
		if strings.HasSuffix(lower, qw) && !strings.Contains(text, "?") {
			return false, prompts.ContinuationCue
		}
	}
	if len(words) <= 3 {
		for _, starter := range incompleteShortStarters {
			if strings.HasPrefix(lower, starter) {
				return false, prompts.ContinuationCue
			}
		}
	}

	// Clear terminal punctuation, a reasonably long utterance, or an on-topic
	// domain keyword short-circuits to "complete" without an LLM call, so
	// long as the utterance isn't suspiciously short.
	looksComplete := strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") ||
		len(words) >= 5
	if !looksComplete {
		for _, w := range completenessDomainWords {
			if strings.Contains(lower, w) {
				looksComplete = true
				break
			}
		}
	}
	if looksComplete && len(words) >= 4 {
		return true, ""
	}

	if e.llm == nil {
		return true, ""
	}
	verdict, err := e.llm.Complete(ctx,
		"Reply with exactly one word, COMPLETE or INCOMPLETE: does the following sentence sound finished?",
		nil, text)
	if err != nil {
		e.log.Warn("completeness LLM fallback failed, defaulting to complete", "error", err)
		return true, ""
	}
	if strings.Contains(strings.ToUpper(verdict), "INCOMPLETE") {
		return false, prompts.ContinuationCue
	}
	return true, ""
}
