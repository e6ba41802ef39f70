package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/smilecare/ivr-core/pkg/audio"
	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// GroqSTT transcribes via Groq's OpenAI-compatible Whisper endpoint.
type GroqSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

func NewGroqSTT(apiKey string, model string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

func (s *GroqSTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *GroqSTT) Transcribe(ctx context.Context, pcm []byte, lang orchestrator.Language) (orchestrator.ASRResult, error) {
	wavData := audio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return orchestrator.ASRResult{}, err
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return orchestrator.ASRResult{}, err
	}
	if lang != "" {
		if err := writer.WriteField("language", string(lang)); err != nil {
			return orchestrator.ASRResult{}, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return orchestrator.ASRResult{}, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return orchestrator.ASRResult{}, err
	}
	if err := writer.Close(); err != nil {
		return orchestrator.ASRResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return orchestrator.ASRResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return orchestrator.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return orchestrator.ASRResult{}, fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Segments []struct {
			AvgLogprob float64 `json:"avg_logprob"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return orchestrator.ASRResult{}, err
	}

	if result.Text == "" {
		return orchestrator.ASRResult{}, nil
	}
	outLang := lang
	if result.Language != "" {
		outLang = orchestrator.Language(result.Language)
	}
	return orchestrator.ASRResult{Text: result.Text, Confidence: avgLogprobConfidence(result.Segments), Language: outLang}, nil
}

func (s *GroqSTT) Name() string {
	return "groq_stt"
}
