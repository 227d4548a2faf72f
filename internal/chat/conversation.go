package chat

import (
	"strings"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

// DefaultHistory is how many messages a Conversation keeps.
const DefaultHistory = 20

// Conversation is the bounded message history of one WebSocket session. It
// is not safe for concurrent use.
type Conversation struct {
	max  int
	msgs []models.ChatMessage
}

func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Conversation{max: limit}
}

// Add appends a message, dropping the oldest ones beyond the bound. Blank
// content is ignored.
func (c *Conversation) Add(role models.ChatRole, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	c.msgs = append(c.msgs, models.ChatMessage{Role: role, Content: content})
	if over := len(c.msgs) - c.max; over > 0 {
		c.msgs = append(c.msgs[:0:0], c.msgs[over:]...)
	}
}

// Messages returns a copy of the history, oldest first.
func (c *Conversation) Messages() []models.ChatMessage {
	return append([]models.ChatMessage(nil), c.msgs...)
}

func (c *Conversation) Len() int {
	return len(c.msgs)
}
