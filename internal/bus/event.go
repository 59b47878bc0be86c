package bus

import "time"

// Event kinds used across the client. Subscribers filter by namespace
// prefix, e.g. "chat." matches every chat-level event.
const (
	KindChatListUpdated    = "chat.list_updated"
	KindChatSelected       = "chat.selected"
	KindChatOpFailed       = "chat.op_failed"
	KindMessageListUpdated = "message.list_updated"
	KindMessageSendAck     = "message.send_ack"
	KindMessageSendFailed  = "message.send_failed"
	KindRemoteChatChanged  = "rt.chat_changed"
	KindRemoteMessage      = "rt.message_inserted"
	KindConnStatusChanged  = "conn.status_changed"
	KindNotify             = "ui.notify"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
