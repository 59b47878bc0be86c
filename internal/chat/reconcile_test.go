package chat

import (
	"context"
	"testing"
	"time"

	"github.com/Nahtral/100IN-sub005/internal/bus"
	"github.com/Nahtral/100IN-sub005/internal/realtime"
	"github.com/Nahtral/100IN-sub005/internal/rpc"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func reconcilerFixture(t *testing.T, backend *mockBackend) (*Manager, *bus.Bus, *Reconciler) {
	t.Helper()
	m, b := testManager(t, backend)
	rec := NewReconciler(m, b, zap.NewNop())
	rec.Start(context.Background())
	t.Cleanup(rec.Stop)
	return m, b, rec
}

func TestRemoteChatChangeRefreshesList(t *testing.T) {
	backend := newMockBackend()
	backend.listChatsFn = func(pageSize, offset int) ([]rpc.ChatRow, error) {
		return chatRows(2, 0), nil
	}
	m, b, _ := reconcilerFixture(t, backend)

	b.Emit(bus.KindRemoteChatChanged, realtime.ChatChange{ChatID: "c0", Action: "UPDATE"})

	waitFor(t, func() bool { return backend.count(rpc.ProcListChats) == 1 },
		"chat list was not refreshed after remote change")
	waitFor(t, func() bool { return len(m.Chats()) == 2 },
		"refreshed list not applied")
}

func TestRemoteInsertAppendsToActiveChat(t *testing.T) {
	backend := newMockBackend()
	backend.listChatsFn = func(pageSize, offset int) ([]rpc.ChatRow, error) {
		return []rpc.ChatRow{{ChatID: "c1"}}, nil
	}
	backend.getMessagesFn = func(chatID string, pageSize int, before *time.Time) ([]rpc.MessageRow, error) {
		return messageRows("c1", 2, 2000), nil
	}
	m, b, _ := reconcilerFixture(t, backend)
	ctx := context.Background()
	_ = m.LoadChats(ctx, true)
	selectChat(t, m, ctx, "c1")

	// The backfill refresh now includes the new row with full sender fields.
	backend.mu.Lock()
	backend.getMessagesFn = func(chatID string, pageSize int, before *time.Time) ([]rpc.MessageRow, error) {
		rows := []rpc.MessageRow{{
			ID: "m-new", ChatID: "c1", SenderID: "u2", SenderName: "Alex",
			Content: "fresh", MessageType: "text", CreatedAt: time.UnixMilli(3000),
		}}
		return append(rows, messageRows("c1", 2, 2000)...), nil
	}
	backend.mu.Unlock()

	b.Emit(bus.KindRemoteMessage, realtime.MessageInsert{
		ID:          "m-new",
		ChatID:      "c1",
		SenderID:    "u2",
		Content:     "fresh",
		MessageType: "text",
		CreatedAt:   time.UnixMilli(3000),
	})

	waitFor(t, func() bool {
		msgs := m.Messages()
		return len(msgs) == 3 && msgs[2].ID == "m-new"
	}, "remote insert was not appended")

	msgs := m.Messages()
	assertChronological(t, msgs)
	if msgs[2].Status != StatusDelivered {
		t.Errorf("status = %q, want delivered", msgs[2].Status)
	}
}

func TestRemoteInsertNotifiesWhenUnfocused(t *testing.T) {
	backend := newMockBackend()
	backend.listChatsFn = func(pageSize, offset int) ([]rpc.ChatRow, error) {
		return []rpc.ChatRow{{ChatID: "c1"}}, nil
	}
	m, b, _ := reconcilerFixture(t, backend)
	ctx := context.Background()
	_ = m.LoadChats(ctx, true)
	selectChat(t, m, ctx, "c1")
	m.SetFocused(false)

	notifyCh, unsub := b.Subscribe(bus.KindNotify, 10)
	defer unsub()

	b.Emit(bus.KindRemoteMessage, realtime.MessageInsert{
		ID: "m1", ChatID: "c1", SenderID: "u2", Content: "ping", CreatedAt: time.Now(),
	})

	select {
	case evt := <-notifyCh:
		if evt.Payload != "c1" {
			t.Errorf("notify payload = %v, want chat id", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for insert while unfocused")
	}
}

func TestRemoteInsertSilentWhenFocused(t *testing.T) {
	backend := newMockBackend()
	backend.listChatsFn = func(pageSize, offset int) ([]rpc.ChatRow, error) {
		return []rpc.ChatRow{{ChatID: "c1"}}, nil
	}
	m, b, _ := reconcilerFixture(t, backend)
	ctx := context.Background()
	_ = m.LoadChats(ctx, true)
	selectChat(t, m, ctx, "c1")

	backend.mu.Lock()
	backend.getMessagesFn = func(chatID string, pageSize int, before *time.Time) ([]rpc.MessageRow, error) {
		return []rpc.MessageRow{{
			ID: "m1", ChatID: "c1", SenderID: "u2", Content: "ping",
			MessageType: "text", CreatedAt: time.UnixMilli(1000),
		}}, nil
	}
	backend.mu.Unlock()

	notifyCh, unsub := b.Subscribe(bus.KindNotify, 10)
	defer unsub()

	b.Emit(bus.KindRemoteMessage, realtime.MessageInsert{
		ID: "m1", ChatID: "c1", SenderID: "u2", Content: "ping", CreatedAt: time.Now(),
	})

	waitFor(t, func() bool { return len(m.Messages()) == 1 }, "insert not applied")
	select {
	case <-notifyCh:
		t.Error("notified despite the view being focused")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplyRemoteInsertFilters(t *testing.T) {
	backend := newMockBackend()
	backend.listChatsFn = func(pageSize, offset int) ([]rpc.ChatRow, error) {
		return []rpc.ChatRow{{ChatID: "c1"}}, nil
	}
	m, _ := testManager(t, backend)
	ctx := context.Background()
	_ = m.LoadChats(ctx, true)
	selectChat(t, m, ctx, "c1")

	base := Message{ID: "m1", ChatID: "c1", SenderID: "u2", Content: "hi", CreatedAt: time.Now()}

	other := base
	other.ChatID = "c9"
	if m.applyRemoteInsert(other) {
		t.Error("insert for an inactive chat was applied")
	}

	// Echo of the viewer's own send; the optimistic entry already covers it.
	own := base
	own.SenderID = "u1"
	if m.applyRemoteInsert(own) {
		t.Error("viewer's own echo was applied")
	}

	if !m.applyRemoteInsert(base) {
		t.Fatal("valid insert was not applied")
	}
	if m.applyRemoteInsert(base) {
		t.Error("duplicate id was applied twice")
	}
	if got := len(m.Messages()); got != 1 {
		t.Errorf("got %d messages, want 1", got)
	}
}
