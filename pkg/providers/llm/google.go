package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

type GoogleLLM struct {
	apiKey string
	url    string
	model  string
}

func NewGoogleLLM(apiKey string, model string) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:  model,
	}
}

type googleContent struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

func (l *GoogleLLM) Complete(ctx context.Context, systemPrompt string, history []orchestrator.Message, userText string) (string, error) {
	var contents []googleContent
	// Gemini doesn't accept a "system" role in every model, so the system
	// prompt is folded in as the first user turn, matching the teacher's own
	// workaround for this vendor.
	if systemPrompt != "" {
		contents = append(contents, newGoogleContent("user", systemPrompt))
	}
	for _, m := range history {
		role := m.Role
		if role == "assistant" {
			role = "model"
		} else if role != "user" {
			role = "user"
		}
		contents = append(contents, newGoogleContent(role, m.Content))
	}
	contents = append(contents, newGoogleContent("user", userText))

	payload := map[string]interface{}{"contents": contents}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from google llm")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func newGoogleContent(role, text string) googleContent {
	c := googleContent{Role: role}
	c.Parts = append(c.Parts, struct {
		Text string `json:"text"`
	}{Text: text})
	return c
}

func (l *GoogleLLM) Name() string {
	return "google_llm"
}
