package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/smilecare/ivr-core/pkg/audio"
	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// Deps holds the shared collaborators every handler needs, matching the
// pack gateway's deps-struct-of-shared-clients shape.
type Deps struct {
	Store orchestrator.Store
	STT   orchestrator.STTProvider
	LLM   orchestrator.LLMProvider
	TTS   orchestrator.TTSProvider
	VAD   *orchestrator.FrameVAD
	Cfg   orchestrator.Config
	Log   orchestrator.Logger
}

// RegisterRoutes wires the HTTP + WebSocket surface spec.md §6 describes onto
// mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	mux.HandleFunc("GET /", d.handleIndex)
	mux.HandleFunc("POST /session/create", d.handleSessionCreate)
	mux.HandleFunc("POST /session/{id}/close", d.handleSessionClose)
	mux.HandleFunc("GET /session/{id}/status", d.handleSessionStatus)
	mux.HandleFunc("POST /voice", d.handleVoice)
	mux.HandleFunc("GET /ws/voice/{session_id}", d.handleVoiceWS)
	mux.HandleFunc("GET /metrics", metricsHandler)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>SmileCare Dental Clinic — Voice Assistant</title></head>
<body>
<h1>SmileCare Dental Clinic</h1>
<p>Voice assistant core is running. Connect over WebSocket at /ws/voice/{session_id}.</p>
</body>
</html>`

func (d Deps) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexPage))
}

func (d Deps) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if d.Store == nil {
		http.Error(w, `{"message":"session store unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	sess, err := d.Store.CreateSession(r.Context(), req.UserID)
	if err != nil {
		slog.Error("create session failed", "error", err)
		http.Error(w, `{"message":"failed to create session"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sess.ID,
		"message":    "session created",
	})
}

func (d Deps) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if d.Store == nil {
		http.Error(w, `{"message":"session store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if err := d.Store.CloseSession(r.Context(), id); err != nil {
		http.Error(w, `{"message":"unknown session"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"message":    "session closed",
	})
}

func (d Deps) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if d.Store == nil {
		http.Error(w, `{"message":"session store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	sess, err := d.Store.GetSession(r.Context(), id)
	if err != nil {
		http.Error(w, `{"message":"unknown session"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    sess.ID,
		"state":         sess.State,
		"created_at":    sess.CreatedAt,
		"last_activity": sess.LastActivity,
		"is_idle":       sess.IsIdleDue(time.Now()),
	})
}

// handleVoice implements spec.md §6's one-shot non-streaming path: transcribe,
// run through the dialog engine, synthesize, return everything in one
// response rather than over a WebSocket.
func (d Deps) handleVoice(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		http.Error(w, `{"message":"session store unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		http.Error(w, `{"message":"missing X-Session-ID header"}`, http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, `{"message":"invalid multipart body"}`, http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, `{"message":"missing audio field"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	pcm, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, `{"message":"failed to read audio"}`, http.StatusBadRequest)
		return
	}

	orch := orchestrator.NewSessionOrchestrator(sessionID, d.Store, d.STT, d.LLM, d.TTS, d.VAD, d.Cfg, d.Log)
	if err := orch.EnsureConversation(r.Context()); err != nil {
		http.Error(w, `{"message":"failed to initialize conversation"}`, http.StatusInternalServerError)
		return
	}

	var wav []byte
	if audio.IsLegacyContainer(pcm) {
		wav = pcm
	} else {
		wav = audio.NewWavBuffer(pcm, d.Cfg.SampleRate)
	}
	result, err := d.STT.Transcribe(r.Context(), wav, orchestrator.LanguageEn)
	if err != nil {
		http.Error(w, `{"message":"transcription failed"}`, http.StatusBadGateway)
		return
	}

	msgs, err := orch.ProcessOneShot(r.Context(), result)
	if err != nil {
		http.Error(w, `{"message":"processing failed"}`, http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"session_id":     sessionID,
		"asr_confidence": result.Confidence,
		"asr_language":   result.Language,
	}
	for _, m := range msgs {
		switch m.Type {
		case "transcription":
			resp["text"] = m.Text
			resp["asr_action"] = m.Action
		case "response":
			resp["audio"] = m.Audio
			resp["session_state"] = m.ConversationState
			resp["conversation_state"] = m.ConversationState
			resp["should_end"] = m.ShouldEnd
			if t, ok := resp["text"]; !ok || t == "" {
				resp["text"] = m.Text
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
