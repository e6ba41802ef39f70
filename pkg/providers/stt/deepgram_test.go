package stt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"context"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

func TestDeepgramSTT(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{
			"results": map[string]interface{}{
				"channels": []map[string]interface{}{
					{
						"alternatives": []map[string]interface{}{
							{"transcript": "I'd like to book an appointment", "confidence": 0.92},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := &DeepgramSTT{apiKey: "test-key", url: server.URL, sampleRate: 16000}
	result, err := s.Transcribe(context.Background(), []byte{0, 0, 0, 0}, orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "I'd like to book an appointment" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", result.Confidence)
	}
	if s.Name() != "deepgram_stt" {
		t.Errorf("expected deepgram_stt, got %s", s.Name())
	}
}

func TestDeepgramSTTNoAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{"channels": []map[string]interface{}{}},
		})
	}))
	defer server.Close()

	s := &DeepgramSTT{apiKey: "test-key", url: server.URL, sampleRate: 16000}
	result, err := s.Transcribe(context.Background(), []byte{0, 0}, orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "" || result.Confidence != 0 {
		t.Errorf("expected zero-value result, got %+v", result)
	}
}
