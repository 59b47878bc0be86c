package store

import (
	"fmt"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/chat"
)

// SaveChats replaces the cached chat list, preserving its order. It is the
// whole-list snapshot from the last successful refresh, not an incremental
// merge.
func (db *DB) SaveChats(chats []chat.Chat) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, c := range chats {
		if _, err := tx.Exec(`
			INSERT INTO chats (chat_id, name, kind, is_archived, is_pinned, unread_count, last_message_at, preview, preview_sender, position, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, string(c.Kind), c.Archived, c.Pinned, c.Unread, c.LastMessageAt.UnixMilli(), c.Preview, c.PreviewSender, i, now); err != nil {
			return fmt.Errorf("insert chat %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// LoadChats returns the cached chat list in its saved order.
func (db *DB) LoadChats() ([]chat.Chat, error) {
	rows, err := db.Query(`
		SELECT chat_id, name, kind, is_archived, is_pinned, unread_count, last_message_at, preview, preview_sender
		FROM chats ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []chat.Chat
	for rows.Next() {
		var c chat.Chat
		var kind string
		var lastMs int64
		if err := rows.Scan(&c.ID, &c.Name, &kind, &c.Archived, &c.Pinned, &c.Unread, &lastMs, &c.Preview, &c.PreviewSender); err != nil {
			return nil, err
		}
		c.Kind = chat.Kind(kind)
		c.LastMessageAt = time.UnixMilli(lastMs)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// SaveMessages replaces the cached window for one chat. In-flight sends are
// skipped: a "sending" message resurrected from cache could never resolve.
func (db *DB) SaveMessages(chatID string, msgs []chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if m.Status == chat.StatusSending {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (chat_id, msg_id, sender_id, sender_name, content, content_kind, attachment_url, is_edited, is_deleted, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chatID, m.ID, m.SenderID, m.SenderName, m.Content, string(m.Kind), m.Attachment, m.Edited, m.Deleted, string(m.Status), m.CreatedAt.UnixMilli(), now); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// LoadMessages returns the cached window for one chat in chronological order.
func (db *DB) LoadMessages(chatID string) ([]chat.Message, error) {
	rows, err := db.Query(`
		SELECT msg_id, sender_id, sender_name, content, content_kind, attachment_url, is_edited, is_deleted, status, created_at
		FROM messages WHERE chat_id = ? ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var kind, status string
		var createdMs int64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Content, &kind, &m.Attachment, &m.Edited, &m.Deleted, &status, &createdMs); err != nil {
			return nil, err
		}
		m.ChatID = chatID
		m.Kind = chat.ContentKind(kind)
		m.Status = chat.DeliveryStatus(status)
		m.CreatedAt = time.UnixMilli(createdMs)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
