package models

// ChatRole is the author of a chat turn.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn in a chat conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatFrame is exchanged over the chat WebSocket.
// Client frames use type "message" or "ping"; server frames use "reply",
// "pong" or "error".
type ChatFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}
