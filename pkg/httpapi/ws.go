package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/smilecare/ivr-core/pkg/metrics"
	"github.com/smilecare/ivr-core/pkg/orchestrator"
	"github.com/smilecare/ivr-core/pkg/prompts"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// controlFrame is a text control message sent during a call (ping, end).
type controlFrame struct {
	Type string `json:"type"`
}

// handleVoiceWS upgrades the connection and runs one call's worth of the
// Session Orchestrator loop (spec.md §6, §4.E).
func (d Deps) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if d.Store == nil {
		writeWSError(conn, "session store unavailable")
		return
	}
	if _, err := d.Store.GetSession(r.Context(), sessionID); err != nil {
		writeWSError(conn, "Invalid session")
		return
	}

	d.runVoiceSession(conn, sessionID)
}

func (d Deps) runVoiceSession(conn *websocket.Conn, sessionID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	orch := orchestrator.NewSessionOrchestrator(sessionID, d.Store, d.STT, d.LLM, d.TTS, d.VAD, d.Cfg, d.Log)
	defer orch.Close(ctx)

	if greeting, err := orch.Start(ctx); err != nil {
		slog.Error("session start failed", "session_id", sessionID, "error", err)
		writeWSError(conn, "failed to start session")
		return
	} else if greeting != nil {
		writeWSMessage(conn, *greeting)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("voice websocket closed", "session_id", sessionID, "error", err)
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var ctrl controlFrame
			if json.Unmarshal(data, &ctrl) != nil {
				continue
			}
			switch ctrl.Type {
			case "ping":
				writeWSMessage(conn, orch.HandlePing())
			case "end":
				return
			}
		case websocket.BinaryMessage:
			msgs, err := orch.HandleAudio(ctx, data)
			if err != nil {
				slog.Warn("audio handling failed", "session_id", sessionID, "error", err)
				continue
			}
			for _, m := range msgs {
				recordMessageMetrics(m)
				writeWSMessage(conn, m)
				if m.ShouldEnd {
					return
				}
			}
		}
	}
}

func recordMessageMetrics(m orchestrator.OutboundMessage) {
	switch m.Type {
	case "barge_in":
		metrics.BargeIns.Inc()
	case "transcription":
		metrics.ASRConfidence.Observe(m.Confidence)
		metrics.TurnsTotal.Inc()
	case "response":
		if m.Text == prompts.NudgeMessage {
			metrics.Nudges.Inc()
		}
	}
}

func writeWSMessage(conn *websocket.Conn, m orchestrator.OutboundMessage) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		slog.Error("write websocket message failed", "error", err)
	}
}

func writeWSError(conn *websocket.Conn, message string) {
	writeWSMessage(conn, orchestrator.OutboundMessage{Type: "error", Message: message})
}
