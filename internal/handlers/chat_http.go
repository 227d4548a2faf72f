package handlers

import (
	"net/http"

	"github.com/AnshRaj112/astroguide-backend/internal/chat"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

const maxChatContent = 4000

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

// PostChat answers POST /api/chat. Only the newest chat.DefaultHistory
// messages are forwarded. The reply is always rendered by the client, so
// fallback and error sources still answer 200.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	conv := chat.NewConversation(chat.DefaultHistory)
	for _, m := range body.Messages {
		switch m.Role {
		case models.ChatRoleUser, models.ChatRoleAssistant:
		case models.ChatRoleSystem:
			continue
		default:
			writeError(w, http.StatusBadRequest, "Unknown message role")
			return
		}
		if len(m.Content) > maxChatContent {
			writeError(w, http.StatusBadRequest, "Message is too long")
			return
		}
		conv.Add(m.Role, m.Content)
	}
	if conv.Len() == 0 {
		writeError(w, http.StatusBadRequest, "At least one message is required")
		return
	}

	reply := h.Chat.Send(r.Context(), conv.Messages())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"reply":   reply.Text,
		"source":  reply.Source,
	})
}
