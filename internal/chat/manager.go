// Package chat holds the client-side state for the viewer's conversations:
// the chat list, the active conversation's messages, pagination cursors and
// in-flight optimistic sends. It is the only writer of that state; views
// render snapshots and the backend stays the source of record.
package chat

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	chatPageSize    = 30
	messagePageSize = 50
)

// Backend is the remote procedure surface the manager drives. *rpc.Client
// satisfies it.
type Backend interface {
	ListChats(ctx context.Context, pageSize, offset int) ([]rpc.ChatRow, error)
	GetMessages(ctx context.Context, chatID string, pageSize int, before *time.Time) ([]rpc.MessageRow, error)
	CreateChat(ctx context.Context, name string, isGroup bool, participantIDs []string) (string, error)
	SendMessage(ctx context.Context, chatID, content, messageType, attachmentURL string) (string, error)
	MarkRead(ctx context.Context, chatID string) error
}

// Cache persists a last-known-good snapshot for warm starts. Implementations
// are best-effort; the manager logs and continues on cache errors.
type Cache interface {
	SaveChats(chats []Chat) error
	SaveMessages(chatID string, msgs []Message) error
	LoadChats() ([]Chat, error)
	LoadMessages(chatID string) ([]Message, error)
}

// Manager owns the in-memory chat state for one session.
type Manager struct {
	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger
	cache   Cache
	userID  string
	retry   *retrier

	focused atomic.Bool

	mu           sync.Mutex
	chats        []Chat
	chatOffset   int
	hasMoreChats bool
	messages     []Message
	activeChatID string
	oldestLoaded time.Time
	hasMoreMsgs  bool
	generation   uint64
	lastErr      error
}

// NewManager creates a manager for the given viewer identity. cache may be
// nil to disable warm-start persistence.
func NewManager(backend Backend, b *bus.Bus, cache Cache, userID string, logger *zap.Logger) *Manager {
	m := &Manager{
		backend: backend,
		bus:     b,
		logger:  logger,
		cache:   cache,
		userID:  userID,
		retry:   newRetrier(logger),
	}
	m.focused.Store(true)
	return m
}

// UserID returns the viewer identity the manager was created with.
func (m *Manager) UserID() string { return m.userID }

// SetFocused records whether the conversation view is in the foreground.
// Realtime inserts that arrive while unfocused trigger a notification.
func (m *Manager) SetFocused(focused bool) { m.focused.Store(focused) }

// WarmStart loads the cached last-known-good chat list so the UI has
// something to show before the first refresh lands.
func (m *Manager) WarmStart() {
	if m.cache == nil {
		return
	}
	chats, err := m.cache.LoadChats()
	if err != nil {
		m.logger.Warn("warm start failed", zap.Error(err))
		return
	}
	if len(chats) == 0 {
		return
	}
	m.mu.Lock()
	if len(m.chats) == 0 {
		m.chats = chats
	}
	m.mu.Unlock()
	m.bus.Emit(bus.KindChatListUpdated, nil)
}

// LoadChats fetches one page of the chat list. reset discards prior results
// and starts from offset 0; otherwise the next page is appended. On final
// failure existing state is left untouched.
func (m *Manager) LoadChats(ctx context.Context, reset bool) error {
	m.mu.Lock()
	offset := m.chatOffset
	if reset {
		offset = 0
	}
	m.mu.Unlock()

	var rows []rpc.ChatRow
	err := m.retry.Do(ctx, rpc.ProcListChats, func(ctx context.Context) error {
		var err error
		rows, err = m.backend.ListChats(ctx, chatPageSize, offset)
		return err
	})
	if err != nil {
		m.fail(rpc.ProcListChats, err)
		return err
	}

	page := make([]Chat, 0, len(rows))
	for _, r := range rows {
		page = append(page, chatFromRow(r))
	}

	m.mu.Lock()
	if reset {
		m.chats = page
	} else {
		m.chats = append(m.chats, page...)
	}
	m.chatOffset = offset + len(rows)
	m.hasMoreChats = len(rows) == chatPageSize
	m.lastErr = nil
	snapshot := slices.Clone(m.chats)
	m.mu.Unlock()

	m.persistChats(snapshot)
	m.bus.Emit(bus.KindChatListUpdated, nil)
	return nil
}

// SelectChat makes chatID the active conversation, loads its latest page
// and marks it read best-effort. Unknown ids are a no-op.
func (m *Manager) SelectChat(ctx context.Context, chatID string) error {
	m.mu.Lock()
	known := slices.ContainsFunc(m.chats, func(c Chat) bool { return c.ID == chatID })
	if !known {
		m.mu.Unlock()
		m.logger.Debug("select ignored for unknown chat", zap.String("chat_id", chatID))
		return nil
	}
	m.activeChatID = chatID
	m.messages = nil
	m.oldestLoaded = time.Time{}
	m.hasMoreMsgs = false
	m.generation++
	m.mu.Unlock()

	m.bus.Emit(bus.KindChatSelected, chatID)

	// Read-state is not safety-critical; failures are logged, never surfaced.
	go m.MarkRead(context.WithoutCancel(ctx), chatID)

	return m.LoadMessages(ctx, chatID, true)
}

// LoadMessages fetches one page of messages for chatID. reset replaces the
// list with the latest page; otherwise the older page is prepended ahead of
// the held messages, keeping chronological order. Results for a chat that is
// no longer active are discarded.
func (m *Manager) LoadMessages(ctx context.Context, chatID string, reset bool) error {
	m.mu.Lock()
	if reset {
		m.oldestLoaded = time.Time{}
	}
	var before *time.Time
	if !m.oldestLoaded.IsZero() {
		t := m.oldestLoaded
		before = &t
	}
	gen := m.generation
	m.mu.Unlock()

	var rows []rpc.MessageRow
	err := m.retry.Do(ctx, rpc.ProcGetMessages, func(ctx context.Context) error {
		var err error
		rows, err = m.backend.GetMessages(ctx, chatID, messagePageSize, before)
		return err
	})
	if err != nil {
		m.fail(rpc.ProcGetMessages, err)
		return err
	}

	// Server returns newest-first; flip to chronological before merging.
	page := make([]Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		page = append(page, messageFromRow(rows[i]))
	}

	m.mu.Lock()
	if m.activeChatID != chatID || m.generation != gen {
		// Stale response: the viewer moved on while this was in flight.
		m.mu.Unlock()
		return nil
	}
	if reset {
		m.messages = page
	} else {
		m.messages = append(page, m.messages...)
	}
	m.hasMoreMsgs = len(rows) == messagePageSize
	if len(page) > 0 {
		m.oldestLoaded = page[0].CreatedAt
	}
	m.lastErr = nil
	snapshot := slices.Clone(m.messages)
	m.mu.Unlock()

	m.persistMessages(chatID, snapshot)
	m.bus.Emit(bus.KindMessageListUpdated, chatID)
	return nil
}

// LoadOlder fetches the next older page for the active conversation.
func (m *Manager) LoadOlder(ctx context.Context) error {
	m.mu.Lock()
	chatID := m.activeChatID
	hasMore := m.hasMoreMsgs
	m.mu.Unlock()
	if chatID == "" || !hasMore {
		return nil
	}
	return m.LoadMessages(ctx, chatID, false)
}

// Send appends an optimistic message to the active conversation and
// delivers it. The temporary id is swapped for the server id in place on
// success; on final failure the message stays, marked failed, so the viewer
// can retry it. Sending with no active chat or no identity is a no-op.
func (m *Manager) Send(ctx context.Context, content string, kind ContentKind, attachment string) error {
	m.mu.Lock()
	chatID := m.activeChatID
	if chatID == "" || m.userID == "" {
		m.mu.Unlock()
		return nil
	}
	if kind == "" {
		kind = ContentText
	}
	tempID := "pending-" + uuid.New().String()
	m.messages = append(m.messages, Message{
		ID:         tempID,
		ChatID:     chatID,
		SenderID:   m.userID,
		Content:    content,
		Kind:       kind,
		Attachment: attachment,
		CreatedAt:  time.Now(),
		Status:     StatusSending,
	})
	m.mu.Unlock()

	m.bus.Emit(bus.KindMessageListUpdated, chatID)

	var serverID string
	err := m.retry.Do(ctx, rpc.ProcSendMessage, func(ctx context.Context) error {
		var err error
		serverID, err = m.backend.SendMessage(ctx, chatID, content, string(kind), attachment)
		return err
	})

	m.mu.Lock()
	for i := range m.messages {
		if m.messages[i].ID != tempID {
			continue
		}
		if err != nil {
			m.messages[i].Status = StatusFailed
		} else {
			m.messages[i].ID = serverID
			m.messages[i].Status = StatusSent
		}
		break
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("send failed", zap.String("chat_id", chatID), zap.String("client_msg_id", tempID), zap.Error(err))
		m.bus.Emit(bus.KindMessageSendFailed, OpError{Op: rpc.ProcSendMessage, Err: err})
		m.bus.Emit(bus.KindMessageListUpdated, chatID)
		return err
	}

	m.bus.Emit(bus.KindMessageSendAck, serverID)
	m.bus.Emit(bus.KindMessageListUpdated, chatID)
	return nil
}

// MarkRead zeroes the unread count for chatID. Best-effort: no retries, and
// failures are logged only — the count self-corrects on the next list
// refresh. Calling it on an already-read chat is a no-op.
func (m *Manager) MarkRead(ctx context.Context, chatID string) {
	if err := m.backend.MarkRead(ctx, chatID); err != nil {
		m.logger.Warn("mark read failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}

	m.mu.Lock()
	changed := false
	for i := range m.chats {
		if m.chats[i].ID == chatID && m.chats[i].Unread != 0 {
			m.chats[i].Unread = 0
			changed = true
		}
	}
	m.mu.Unlock()

	if changed {
		m.bus.Emit(bus.KindChatListUpdated, nil)
	}
}

// CreateChat creates a conversation and refreshes the chat list. The list is
// refetched rather than patched locally because the server-returned chat
// carries denormalized fields the client cannot fabricate. Empty participant
// lists and missing identity are no-ops.
func (m *Manager) CreateChat(ctx context.Context, name string, kind Kind, participantIDs []string) error {
	if len(participantIDs) == 0 || m.userID == "" {
		m.logger.Debug("create chat ignored: missing participants or identity")
		return nil
	}

	var chatID string
	err := m.retry.Do(ctx, rpc.ProcCreateChat, func(ctx context.Context) error {
		var err error
		chatID, err = m.backend.CreateChat(ctx, name, kind == KindGroup, participantIDs)
		return err
	})
	if err != nil {
		m.fail(rpc.ProcCreateChat, err)
		return err
	}

	m.logger.Info("chat created", zap.String("chat_id", chatID))
	return m.LoadChats(ctx, true)
}

// Chats returns a snapshot of the chat list.
func (m *Manager) Chats() []Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.chats)
}

// Messages returns a snapshot of the active conversation.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// ActiveChatID returns the id of the active conversation, or "".
func (m *Manager) ActiveChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeChatID
}

// ActiveChat returns the active conversation's list entry.
func (m *Manager) ActiveChat() (Chat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.ID == m.activeChatID {
			return c, true
		}
	}
	return Chat{}, false
}

// HasMoreMessages reports whether an older page is expected to exist. This
// is the page-size heuristic: a full page implies more, which may cost one
// extra empty fetch at the true boundary.
func (m *Manager) HasMoreMessages() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMoreMsgs
}

// HasMoreChats reports whether another chat-list page is expected.
func (m *Manager) HasMoreChats() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasMoreChats
}

// Err returns the error recorded by the last failed read operation, or nil.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// applyRemoteInsert merges a realtime message insert into the active
// conversation. Inserts for other chats, or echoes of the viewer's own
// optimistic sends, are ignored. Returns whether the message was applied.
func (m *Manager) applyRemoteInsert(msg Message) bool {
	m.mu.Lock()
	if msg.ChatID != m.activeChatID || msg.SenderID == m.userID {
		m.mu.Unlock()
		return false
	}
	if slices.ContainsFunc(m.messages, func(e Message) bool { return e.ID == msg.ID }) {
		m.mu.Unlock()
		return false
	}
	msg.Status = StatusDelivered
	m.messages = append(m.messages, msg)
	m.mu.Unlock()

	m.bus.Emit(bus.KindMessageListUpdated, msg.ChatID)
	return true
}

func (m *Manager) fail(op string, err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.logger.Error("operation failed after retries", zap.String("op", op), zap.Error(err))
	m.bus.Emit(bus.KindChatOpFailed, OpError{Op: op, Err: err})
}

func (m *Manager) persistChats(chats []Chat) {
	if m.cache == nil {
		return
	}
	if err := m.cache.SaveChats(chats); err != nil {
		m.logger.Warn("cache chats failed", zap.Error(err))
	}
}

func (m *Manager) persistMessages(chatID string, msgs []Message) {
	if m.cache == nil {
		return
	}
	if err := m.cache.SaveMessages(chatID, msgs); err != nil {
		m.logger.Warn("cache messages failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}
