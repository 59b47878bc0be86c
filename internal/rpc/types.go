package rpc

import "time"

// ChatRow is one row returned by the list_chats procedure. The backend
// denormalizes the latest message and the viewer's unread count into it.
type ChatRow struct {
	ChatID            string    `json:"chat_id"`
	ChatName          string    `json:"chat_name"`
	IsGroup           bool      `json:"is_group"`
	IsArchived        bool      `json:"is_archived"`
	IsPinned          bool      `json:"is_pinned"`
	LastMessage       string    `json:"last_message"`
	LastMessageSender string    `json:"last_message_sender"`
	LastMessageAt     time.Time `json:"last_message_time"`
	UnreadCount       int       `json:"unread_count"`
}

// MessageRow is one row returned by the get_messages procedure,
// newest-first.
type MessageRow struct {
	ID            string        `json:"id"`
	ChatID        string        `json:"chat_id"`
	SenderID      string        `json:"sender_id"`
	Content       string        `json:"content"`
	MessageType   string        `json:"message_type"`
	AttachmentURL string        `json:"attachment_url"`
	EditedAt      *time.Time    `json:"edited_at"`
	DeletedAt     *time.Time    `json:"deleted_at"`
	CreatedAt     time.Time     `json:"created_at"`
	SenderName    string        `json:"sender_name"`
	SenderEmail   string        `json:"sender_email"`
	Reactions     []ReactionRow `json:"reactions"`
}

// ReactionRow is a single emoji reaction on a message.
type ReactionRow struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"user_id"`
}

type listChatsParams struct {
	PageSize   int `json:"page_size"`
	PageOffset int `json:"page_offset"`
}

type getMessagesParams struct {
	ChatID   string     `json:"chat_id"`
	PageSize int        `json:"page_size"`
	Before   *time.Time `json:"before"`
}

type createChatParams struct {
	ChatName       *string  `json:"chat_name"`
	IsGroup        bool     `json:"is_group"`
	ParticipantIDs []string `json:"participant_ids"`
}

type createChatResult struct {
	ChatID string `json:"chat_id"`
}

type sendMessageParams struct {
	ChatID        string `json:"chat_id"`
	Content       string `json:"content"`
	MessageType   string `json:"message_type"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

type sendMessageResult struct {
	MessageID string `json:"message_id"`
}

type markReadParams struct {
	ChatID string `json:"chat_id"`
}
