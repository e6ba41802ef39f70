package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// DeepgramSTT transcribes via Deepgram's prerecorded listen endpoint, which
// already reports a per-alternative confidence.
type DeepgramSTT struct {
	apiKey     string
	url        string
	sampleRate int
}

func NewDeepgramSTT(apiKey string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey:     apiKey,
		url:        "https://api.deepgram.com/v1/listen",
		sampleRate: 16000,
	}
}

func (s *DeepgramSTT) Name() string {
	return "deepgram_stt"
}

func (s *DeepgramSTT) Transcribe(ctx context.Context, pcm []byte, lang orchestrator.Language) (orchestrator.ASRResult, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return orchestrator.ASRResult{}, err
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if lang != "" {
		params.Set("language", string(lang))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(pcm))
	if err != nil {
		return orchestrator.ASRResult{}, err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", s.sampleRate))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return orchestrator.ASRResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return orchestrator.ASRResult{}, fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return orchestrator.ASRResult{}, err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return orchestrator.ASRResult{}, nil
	}
	alt := result.Results.Channels[0].Alternatives[0]
	return orchestrator.ASRResult{Text: alt.Transcript, Confidence: alt.Confidence, Language: lang}, nil
}
