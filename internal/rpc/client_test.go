package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListChatsRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotParams map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotParams)
		_, _ = w.Write([]byte(`[{"chat_id":"c1","chat_name":"Varsity","is_group":true,"unread_count":3}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	rows, err := c.ListChats(context.Background(), 30, 60)
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}

	if gotPath != "/rpc/list_chats" {
		t.Errorf("path = %q, want /rpc/list_chats", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}
	if gotParams["page_size"] != float64(30) || gotParams["page_offset"] != float64(60) {
		t.Errorf("params = %v, want page_size=30 page_offset=60", gotParams)
	}
	if len(rows) != 1 || rows[0].ChatID != "c1" || rows[0].UnreadCount != 3 {
		t.Errorf("rows = %+v, want one row c1 with unread 3", rows)
	}
}

func TestGetMessagesCursor(t *testing.T) {
	var gotParams map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotParams)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	before := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := c.GetMessages(context.Background(), "c1", 50, &before); err != nil {
		t.Fatal(err)
	}
	if gotParams["chat_id"] != "c1" {
		t.Errorf("chat_id = %v, want c1", gotParams["chat_id"])
	}
	if gotParams["before"] != "2026-03-01T12:00:00Z" {
		t.Errorf("before = %v, want RFC3339 timestamp", gotParams["before"])
	}

	// Fresh load: cursor absent means null on the wire.
	if _, err := c.GetMessages(context.Background(), "c1", 50, nil); err != nil {
		t.Fatal(err)
	}
	if gotParams["before"] != nil {
		t.Errorf("before = %v, want null for fresh load", gotParams["before"])
	}
}

func TestCreateChatNilNameForPrivate(t *testing.T) {
	var gotParams map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotParams)
		_, _ = w.Write([]byte(`{"chat_id":"new-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	id, err := c.CreateChat(context.Background(), "", false, []string{"u2"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "new-1" {
		t.Errorf("chat id = %q, want new-1", id)
	}
	if gotParams["chat_name"] != nil {
		t.Errorf("chat_name = %v, want null for private chat", gotParams["chat_name"])
	}
}

func TestSendMessageReturnsServerID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message_id":"srv-42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	id, err := c.SendMessage(context.Background(), "c1", "hello", "text", "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "srv-42" {
		t.Errorf("message id = %q, want srv-42", id)
	}
}

func TestTypedErrorFromBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"not_participant","message":"viewer is not in this chat","detail":"chat c9"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GetMessages(context.Background(), "c9", 50, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.Code != "not_participant" || apiErr.Detail != "chat c9" {
		t.Errorf("error = %+v, want code not_participant with detail", apiErr)
	}
}

func TestErrorFallbackOnOpaqueBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.MarkRead(context.Background(), "c1")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.Code != "http_502" {
		t.Errorf("code = %q, want http_502", apiErr.Code)
	}
	if apiErr.Detail != "upstream unavailable" {
		t.Errorf("detail = %q, want raw body", apiErr.Detail)
	}
}

func TestMarkReadEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.MarkRead(context.Background(), "c1"); err != nil {
		t.Errorf("MarkRead() error = %v, want nil on 204", err)
	}
}
