package llm

import "github.com/smilecare/ivr-core/pkg/orchestrator"

// chatMessage is the OpenAI-shaped {role, content} pair every vendor in this
// package accepts, built from a system prompt, trailing history, and the
// current user turn.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildMessages(systemPrompt string, history []orchestrator.Message, userText string) []chatMessage {
	out := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		out = append(out, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	out = append(out, chatMessage{Role: "user", Content: userText})
	return out
}
