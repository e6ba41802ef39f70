package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// AssemblyAISTT transcribes via AssemblyAI's async upload/submit/poll flow.
// AssemblyAI reports a per-transcript confidence directly, so no synthesis
// is needed here.
type AssemblyAISTT struct {
	apiKey   string
	baseURL  string
	pollWait time.Duration
}

func NewAssemblyAISTT(apiKey string) *AssemblyAISTT {
	return &AssemblyAISTT{
		apiKey:   apiKey,
		baseURL:  "https://api.assemblyai.com",
		pollWait: 500 * time.Millisecond,
	}
}

func (s *AssemblyAISTT) Name() string {
	return "assemblyai_stt"
}

func (s *AssemblyAISTT) Transcribe(ctx context.Context, pcm []byte, lang orchestrator.Language) (orchestrator.ASRResult, error) {
	uploadURL, err := s.upload(ctx, pcm)
	if err != nil {
		return orchestrator.ASRResult{}, err
	}

	transcriptID, err := s.submit(ctx, uploadURL, lang)
	if err != nil {
		return orchestrator.ASRResult{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return orchestrator.ASRResult{}, ctx.Err()
		case <-time.After(s.pollWait):
			text, confidence, status, err := s.getTranscript(ctx, transcriptID)
			if err != nil {
				return orchestrator.ASRResult{}, err
			}
			if status == "completed" {
				return orchestrator.ASRResult{Text: text, Confidence: confidence, Language: lang}, nil
			}
			if status == "error" {
				return orchestrator.ASRResult{}, fmt.Errorf("assemblyai transcription failed")
			}
		}
	}
}

func (s *AssemblyAISTT) upload(ctx context.Context, pcm []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v2/upload", bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.UploadURL, nil
}

func (s *AssemblyAISTT) submit(ctx context.Context, uploadURL string, lang orchestrator.Language) (string, error) {
	payload := map[string]interface{}{"audio_url": uploadURL}
	if lang != "" {
		payload["language_code"] = string(lang)
	}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v2/transcript", bytes.NewReader(body))
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.ID, nil
}

func (s *AssemblyAISTT) getTranscript(ctx context.Context, id string) (text string, confidence float64, status string, err error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/v2/transcript/"+id, nil)
	req.Header.Set("Authorization", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status     string  `json:"status"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	return result.Text, result.Confidence, result.Status, nil
}
