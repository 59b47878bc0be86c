package realtime

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format for all server-pushed events.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event types pushed by the server.
const (
	TypeChatChanged     = "chat.changed"
	TypeMessageInserted = "message.inserted"
)

// ChatChange is pushed on any insert/update/delete to a chat the viewer can
// see. Its shape does not match the list procedure's denormalized rows, so
// consumers treat it as an invalidation signal only.
type ChatChange struct {
	ChatID string `json:"chat_id"`
	Action string `json:"action"` // insert | update | delete
}

// MessageInsert is pushed for every new message row the viewer can see.
// Sender display identity is not included.
type MessageInsert struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	Content       string    `json:"content"`
	MessageType   string    `json:"message_type"`
	AttachmentURL string    `json:"attachment_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// command is a client-to-server frame.
type command struct {
	Action string `json:"action"` // subscribe | unsubscribe
	Topic  string `json:"topic"`
}

// Topics the client can subscribe to.
const (
	TopicChats         = "chats"
	topicMessagePrefix = "messages:"
)

// MessageTopic returns the per-chat message-insert topic.
func MessageTopic(chatID string) string {
	return topicMessagePrefix + chatID
}
