package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"

	"github.com/smilecare/ivr-core/pkg/audio"
	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// OpenAISTT transcribes via OpenAI's Whisper endpoint. Whisper itself does
// not return a confidence score, so one is synthesized from segment
// avg_logprob the same way the original faster-whisper service did
// (exp(avg_logprob) averaged across segments).
type OpenAISTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

func NewOpenAISTT(apiKey string, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

func (s *OpenAISTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *OpenAISTT) Name() string {
	return "openai_stt"
}

func (s *OpenAISTT) Transcribe(ctx context.Context, pcm []byte, lang orchestrator.Language) (orchestrator.ASRResult, error) {
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
	if _, err := part.Write(wavData); err != nil {
		return orchestrator.ASRResult{}, err
	}
	writer.Close()

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
		respBody, _ := io.ReadAll(resp.Body)
		return orchestrator.ASRResult{}, fmt.Errorf("openai error: %s (status %d)", string(respBody), resp.StatusCode)
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
		return orchestrator.ASRResult{Confidence: 0}, nil
	}

	confidence := avgLogprobConfidence(result.Segments)
	outLang := lang
	if result.Language != "" {
		outLang = orchestrator.Language(result.Language)
	}
	return orchestrator.ASRResult{Text: result.Text, Confidence: confidence, Language: outLang}, nil
}

func avgLogprobConfidence(segments []struct {
	AvgLogprob float64 `json:"avg_logprob"`
}) float64 {
	if len(segments) == 0 {
		return 0.9
	}
	var sum float64
	for _, seg := range segments {
		sum += math.Exp(seg.AvgLogprob)
	}
	return sum / float64(len(segments))
}
