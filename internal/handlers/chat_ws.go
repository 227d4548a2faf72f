package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/chat"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

const (
	wsReadLimit    = 64 * 1024
	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// originAllowed accepts native clients, which send no Origin, and the
// configured browser origins.
func (h *Handler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}

// ChatWebSocket handles GET /ws/chat. Each {"type":"message"} frame is
// answered with one "reply" frame; the history of the connection is kept
// in a bounded Conversation.
func (h *Handler) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	conv := chat.NewConversation(chat.DefaultHistory)

	send := func(f models.ChatFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(f) == nil
	}

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.Logger.Debug("chat socket closed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var frame models.ChatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if !send(models.ChatFrame{Type: "error", Error: "invalid frame"}) {
				return
			}
			continue
		}

		var out models.ChatFrame
		switch frame.Type {
		case "ping":
			out = models.ChatFrame{Type: "pong"}
		case "message":
			text := strings.TrimSpace(frame.Text)
			if text == "" || len(text) > maxChatContent {
				out = models.ChatFrame{Type: "error", Error: "message must be 1-4000 characters"}
				break
			}
			conv.Add(models.ChatRoleUser, text)
			reply := h.Chat.Send(ctx, conv.Messages())
			if reply.Source != chat.SourceError {
				conv.Add(models.ChatRoleAssistant, reply.Text)
			}
			out = models.ChatFrame{Type: "reply", Text: reply.Text, Source: string(reply.Source)}
		default:
			out = models.ChatFrame{Type: "error", Error: "unknown frame type"}
		}
		if !send(out) {
			return
		}
	}
}
