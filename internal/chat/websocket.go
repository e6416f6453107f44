// Package chat provides the WebSocket transport for the conversational flow.
// It carries the same turns as POST /api/message, for hosts that keep the
// widget connected instead of polling.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/mindsight/synapses/internal/api"
	"github.com/mindsight/synapses/internal/config"
	"github.com/mindsight/synapses/internal/conversation"
)

// wsMessage represents WebSocket message structure.
type wsMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

// inbound fills missing identity fields: the configured defaults for name and
// email, the per-connection anonymous id when the host sent none.
func (m wsMessage) inbound(cfg *config.Config, anonID string) conversation.Inbound {
	in := conversation.Inbound{
		Text:      m.Text,
		UserID:    m.UserID,
		UserName:  m.UserName,
		UserEmail: m.UserEmail,
	}
	if in.UserID == "" {
		in.UserID = anonID
	}
	if in.UserName == "" {
		in.UserName = cfg.DefaultUserName
	}
	if in.UserEmail == "" {
		in.UserEmail = cfg.DefaultUserEmail
	}
	return in
}

// WebSocketHandler handles WebSocket-based chat sessions. Each "message"
// frame is one conversational turn; the reply comes back as a "reply" frame.
type WebSocketHandler struct {
	responder     api.Responder
	cfg           *config.Config
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(responder api.Responder, cfg *config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		responder:     responder,
		cfg:           cfg,
		allowedOrigin: cfg.FrontendURL,
		isDev:         cfg.IsDevelopment(),
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Anonymous connections still need a stable session key, otherwise every
	// turn would start a fresh conversation.
	anonID := "anon-" + uuid.NewString()
	slog.Info("WebSocket chat connected", "ip", r.RemoteAddr)

	h.readLoop(ctx, ws, anonID)
	slog.Info("WebSocket chat ended", "ip", r.RemoteAddr)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, anonID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			if writeErr := h.writeJSON(ws, map[string]string{"type": "error", "error": "invalid_message"}); writeErr != nil {
				slog.Debug("Failed to send invalid_message error", "error", writeErr)
			}
			continue
		}

		switch msg.Type {
		case "message":
			reply := h.responder.Respond(ctx, msg.inbound(h.cfg, anonID))
			if err := h.writeJSON(ws, map[string]string{"type": "reply", "reply": reply}); err != nil {
				slog.Debug("Failed to send reply", "error", err)
				return
			}
		case "ping":
			if err := h.writeJSON(ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		}
	}
}

func (h *WebSocketHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
