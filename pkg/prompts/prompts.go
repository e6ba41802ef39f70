// Package prompts holds the clinic's scripted utterances and the system
// persona handed to the LLM provider. Keeping them here (rather than inline
// in the dialog engine) mirrors how the pack's gateway keeps prompt text out
// of request-handling code.
package prompts

// DefaultSystem is the persona handed to the LLM for every turn.
const DefaultSystem = `You are the voice assistant for SmileCare Dental Clinic.
Keep replies short, warm, and easy to say aloud. Help callers book, reschedule,
or cancel appointments, and answer basic questions about the clinic. If you
are unsure or the request is outside scheduling and clinic information, offer
to connect the caller to a human representative.`

// ForSession returns the system prompt, falling back to DefaultSystem when
// none was configured for this call.
func ForSession(systemPrompt string) string {
	if systemPrompt == "" {
		return DefaultSystem
	}
	return systemPrompt
}

// Greeting opens every new conversation.
const Greeting = "Hello! Welcome to SmileCare Dental Clinic. How can I help you today?"

// NudgeMessage is spoken after a caller goes quiet for a while in IDLE.
const NudgeMessage = "Are you still there?"

// ComfortMessage is spoken while a caller takes a long pause mid-thought.
const ComfortMessage = "Take your time, I'm listening."

// ContinuationCue is spoken after a brief pause judged to be an incomplete
// thought, to invite the caller to keep going.
const ContinuationCue = "Mm-hmm… go on."

// ErrorMessage is spoken when the conversation gives up and escalates.
const ErrorMessage = "I'm having trouble understanding you. Let me connect you to a human representative who can assist you better."

// ClarificationMessage returns the tiered clarification line. count is the
// clarification count *after* increment, matching the original's 1-indexed
// tiering: the first clarification gets the gentler message, every
// subsequent one gets the more direct one.
func ClarificationMessage(count int) string {
	if count <= 1 {
		return "I didn't catch that clearly. Could you please repeat?"
	}
	return "I'm still having trouble understanding. Could you speak more clearly?"
}

// SilencePrompt returns the tiered prompt spoken after a silent turn. count
// is the stored silence-prompt count *after* increment, matching the
// original's get_silence_prompt, which always runs after
// increment_silence_prompt at every call site.
func SilencePrompt(count int) string {
	switch {
	case count == 0:
		return "I'm listening. Please go ahead and speak."
	case count == 1:
		return "I'm still here. Please tell me how I can help you."
	default:
		return "I didn't hear anything. If you need assistance, please speak now or I'll end this call."
	}
}

// ClosingLine is spoken when the conversation ends for any reason other than
// an escalation to a human.
const ClosingLine = "Thank you for calling. Have a great day!"

// Escalation is spoken when the conversation ends due to repeated
// unclear input or low-confidence ASR, before handing off to a human.
const Escalation = ErrorMessage
