package chat

import (
	"time"

	"github.com/Nahtral/100IN-sub005/internal/rpc"
)

// Kind classifies a conversation.
type Kind string

const (
	KindPrivate Kind = "private"
	KindGroup   Kind = "group"
)

// ContentKind classifies a message body.
type ContentKind string

const (
	ContentText   ContentKind = "text"
	ContentImage  ContentKind = "image"
	ContentFile   ContentKind = "file"
	ContentSystem ContentKind = "system"
)

// DeliveryStatus tracks a message through the optimistic send path.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Chat is one conversation in the viewer's list. Archival is a soft state;
// chats are never deleted locally.
type Chat struct {
	ID            string
	Name          string
	Kind          Kind
	Archived      bool
	Pinned        bool
	LastMessageAt time.Time
	Preview       string
	PreviewSender string
	Unread        int
}

// Reaction is a single emoji reaction on a message.
type Reaction struct {
	Emoji  string
	UserID string
}

// Message is an ordered event within one chat. Its ID is mutable exactly
// once: from a client-generated temporary id to the server-assigned id on
// send confirmation.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Content    string
	Kind       ContentKind
	Attachment string
	Edited     bool
	Deleted    bool
	CreatedAt  time.Time
	Status     DeliveryStatus
	Reactions  []Reaction
}

// OpError is the payload published on chat.op_failed: the named operation
// that exhausted its retries and the final error.
type OpError struct {
	Op  string
	Err error
}

func chatFromRow(r rpc.ChatRow) Chat {
	kind := KindPrivate
	if r.IsGroup {
		kind = KindGroup
	}
	return Chat{
		ID:            r.ChatID,
		Name:          r.ChatName,
		Kind:          kind,
		Archived:      r.IsArchived,
		Pinned:        r.IsPinned,
		LastMessageAt: r.LastMessageAt,
		Preview:       r.LastMessage,
		PreviewSender: r.LastMessageSender,
		Unread:        max(r.UnreadCount, 0),
	}
}

func messageFromRow(r rpc.MessageRow) Message {
	kind := ContentKind(r.MessageType)
	if kind == "" {
		kind = ContentText
	}
	m := Message{
		ID:         r.ID,
		ChatID:     r.ChatID,
		SenderID:   r.SenderID,
		SenderName: senderDisplay(r.SenderName, r.SenderEmail),
		Content:    r.Content,
		Kind:       kind,
		Attachment: r.AttachmentURL,
		Edited:     r.EditedAt != nil,
		Deleted:    r.DeletedAt != nil,
		CreatedAt:  r.CreatedAt,
		Status:     StatusDelivered,
	}
	for _, rr := range r.Reactions {
		m.Reactions = append(m.Reactions, Reaction{Emoji: rr.Emoji, UserID: rr.UserID})
	}
	return m
}

func senderDisplay(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
