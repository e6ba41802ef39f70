package orchestrator

import "math"

// TurnConfig holds the Turn-Taking Engine's millisecond thresholds and the
// chunk cadence they are converted against (spec.md §4.B). ChunkMs should
// match whatever duration of PCM the caller actually feeds to ProcessChunk —
// when the Session Orchestrator feeds raw 20ms frames, ChunkMs is 20; a
// caller that pre-batches into 200ms chunks sets it to 200. Either way the
// millisecond thresholds below stay the same.
type TurnConfig struct {
	ChunkMs int

	SilenceGraceMs    int
	ConfirmationMs    int
	MinSpeechMs       int
	NudgeMs           int
	IncompleteWaitMs  int
	ComfortWaitMs     int
}

func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		ChunkMs:          200,
		SilenceGraceMs:   1000,
		ConfirmationMs:   400,
		MinSpeechMs:      300,
		NudgeMs:          1500,
		IncompleteWaitMs: 300,
		ComfortWaitMs:    1500,
	}
}

func chunksFor(ms, chunkMs int) int {
	if chunkMs <= 0 {
		chunkMs = 1
	}
	n := int(math.Round(float64(ms) / float64(chunkMs)))
	if n < 1 {
		return 1
	}
	return n
}

// TurnState is the closed sum type for the Turn-Taking Engine's own state
// (spec.md §4.B), distinct from ConversationState.
type TurnState string

const (
	TurnIdle             TurnState = "IDLE"
	TurnListening        TurnState = "LISTENING"
	TurnCandidateEnd     TurnState = "CANDIDATE_END"
	TurnWaitingIncomplete TurnState = "WAITING_INCOMPLETE"
)

// TurnTakingEngine decides, chunk by chunk, when a user's utterance has
// ended, stalled, or needs a filler prompt. It is not safe for concurrent
// use by more than one goroutine — callers run one instance per active call,
// exactly like the teacher's per-stream VAD clone.
type TurnTakingEngine struct {
	vad FrameVAD
	cfg TurnConfig

	silenceGraceChunks int
	confirmationChunks int
	minSpeechChunks    int
	nudgeChunks        int
	incompleteChunks   int
	comfortChunks      int

	state TurnState
	buf   []byte

	speechChunks  int
	silenceChunks int
	idleSilence   int
}

// NewTurnTakingEngine builds an engine backed by vad. vad is used by value
// since FrameVAD carries no mutable state beyond an optional classifier
// reference.
func NewTurnTakingEngine(vad *FrameVAD, cfg TurnConfig) *TurnTakingEngine {
	return &TurnTakingEngine{
		vad:                *vad,
		cfg:                cfg,
		silenceGraceChunks: chunksFor(cfg.SilenceGraceMs, cfg.ChunkMs),
		confirmationChunks: chunksFor(cfg.ConfirmationMs, cfg.ChunkMs),
		minSpeechChunks:    chunksFor(cfg.MinSpeechMs, cfg.ChunkMs),
		nudgeChunks:        chunksFor(cfg.NudgeMs, cfg.ChunkMs),
		incompleteChunks:   chunksFor(cfg.IncompleteWaitMs, cfg.ChunkMs),
		comfortChunks:      chunksFor(cfg.ComfortWaitMs, cfg.ChunkMs),
		state:              TurnIdle,
	}
}

// State returns the engine's current state, mainly for diagnostics and tests.
func (e *TurnTakingEngine) State() TurnState {
	return e.state
}

func (e *TurnTakingEngine) reset() {
	e.state = TurnIdle
	e.buf = nil
	e.speechChunks = 0
	e.silenceChunks = 0
	e.idleSilence = 0
}

// ProcessChunk feeds one chunk of PCM into the engine and returns the event
// it produces, if any. A nil return means "no event this chunk" — the
// common case while a turn is still in progress.
func (e *TurnTakingEngine) ProcessChunk(chunk []byte) *TurnEvent {
	if len(chunk) == 0 {
		return nil
	}
	if len(chunk) < FrameBytes {
		if e.state == TurnListening || e.state == TurnCandidateEnd {
			e.buf = append(e.buf, chunk...)
		}
		return nil
	}

	class := classify(e.vad.Probability(chunk))

	switch e.state {
	case TurnIdle:
		return e.processIdle(chunk, class)
	case TurnListening:
		return e.processListening(chunk, class)
	case TurnCandidateEnd:
		return e.processCandidateEnd(chunk, class)
	case TurnWaitingIncomplete:
		return e.processWaitingIncomplete(class)
	default:
		return nil
	}
}

func (e *TurnTakingEngine) processIdle(chunk []byte, class voiceClass) *TurnEvent {
	switch class {
	case voiceSpeech:
		e.state = TurnListening
		e.buf = append([]byte{}, chunk...)
		e.speechChunks = 1
		e.silenceChunks = 0
		e.idleSilence = 0
	case voiceSilence:
		e.idleSilence++
		if e.idleSilence >= e.nudgeChunks {
			e.idleSilence = 0
			return &TurnEvent{Type: EventNudge}
		}
	case voiceUncertain:
		// Treat an uncertain reading in IDLE as a weak speech trigger so the
		// engine never stalls on a quiet talker.
		e.state = TurnListening
		e.buf = append([]byte{}, chunk...)
		e.speechChunks = 1
		e.silenceChunks = 0
		e.idleSilence = 0
	}
	return nil
}

func (e *TurnTakingEngine) processListening(chunk []byte, class voiceClass) *TurnEvent {
	e.buf = append(e.buf, chunk...)
	switch class {
	case voiceSpeech:
		e.speechChunks++
		e.silenceChunks = 0
	case voiceSilence:
		e.silenceChunks++
		if e.silenceChunks >= e.silenceGraceChunks {
			if e.speechChunks >= e.minSpeechChunks {
				e.state = TurnCandidateEnd
				e.silenceChunks = 0
			} else {
				e.reset()
			}
		}
	case voiceUncertain:
		// Accumulate only; counters untouched.
	}
	return nil
}

func (e *TurnTakingEngine) processCandidateEnd(chunk []byte, class voiceClass) *TurnEvent {
	e.buf = append(e.buf, chunk...)
	switch class {
	case voiceSpeech:
		e.state = TurnListening
		e.silenceChunks = 0
	case voiceSilence:
		e.silenceChunks++
		if e.silenceChunks >= e.confirmationChunks {
			out := e.buf
			e.reset()
			return &TurnEvent{Type: EventTurnEnd, Buffer: out}
		}
	case voiceUncertain:
		// Accumulate only; counters untouched.
	}
	return nil
}

func (e *TurnTakingEngine) processWaitingIncomplete(class voiceClass) *TurnEvent {
	switch class {
	case voiceSpeech:
		e.state = TurnListening
		e.speechChunks = 1
		e.silenceChunks = 0
	case voiceSilence:
		e.silenceChunks++
		if e.silenceChunks >= e.incompleteChunks {
			e.reset()
			return &TurnEvent{Type: EventContinuationCue}
		}
		if e.silenceChunks >= e.comfortChunks {
			e.reset()
			return &TurnEvent{Type: EventComfort}
		}
	case voiceUncertain:
		// Ignored entirely in this state, matching the original engine.
	}
	return nil
}

// TurnEndIncomplete transitions the engine into WAITING_INCOMPLETE after the
// Conversation Engine has judged a just-ended turn's text to be linguistically
// incomplete (spec.md §4.D step 6). The caller is responsible for deciding
// incompleteness; the Turn-Taking Engine only tracks the subsequent silence.
func (e *TurnTakingEngine) TurnEndIncomplete() {
	e.state = TurnWaitingIncomplete
	e.silenceChunks = 0
}

// FinalizeTurn resets the engine so the next speech begins a fresh turn.
// Called by the orchestrator after a TURN_END has been fully handled, and
// also after CONTINUATION_CUE (idempotent with the engine's own internal
// reset on that event).
func (e *TurnTakingEngine) FinalizeTurn() {
	e.reset()
}
