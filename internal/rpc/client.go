// Package rpc is the typed client for the hosted chat procedures. Every
// call is a JSON POST to <base>/rpc/<name> with a bearer token; errors come
// back as {code, message, detail} and surface as *Error.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Procedure names exposed by the backend.
const (
	ProcListChats   = "list_chats"
	ProcGetMessages = "get_messages"
	ProcCreateChat  = "create_chat"
	ProcSendMessage = "send_message"
	ProcMarkRead    = "mark_read"
)

// Error is a machine-readable failure returned by the backend.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client calls the hosted chat procedures over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a procedure client for the given backend.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListChats returns one page of the viewer's chats, ordered by last
// activity descending.
func (c *Client) ListChats(ctx context.Context, pageSize, offset int) ([]ChatRow, error) {
	var rows []ChatRow
	err := c.call(ctx, ProcListChats, listChatsParams{PageSize: pageSize, PageOffset: offset}, &rows)
	return rows, err
}

// GetMessages returns one page of messages for a chat, newest-first.
// A nil before cursor fetches the latest page.
func (c *Client) GetMessages(ctx context.Context, chatID string, pageSize int, before *time.Time) ([]MessageRow, error) {
	var rows []MessageRow
	err := c.call(ctx, ProcGetMessages, getMessagesParams{ChatID: chatID, PageSize: pageSize, Before: before}, &rows)
	return rows, err
}

// CreateChat creates a conversation and returns its id. name may be empty
// for one-to-one chats; the backend derives the display name.
func (c *Client) CreateChat(ctx context.Context, name string, isGroup bool, participantIDs []string) (string, error) {
	params := createChatParams{IsGroup: isGroup, ParticipantIDs: participantIDs}
	if name != "" {
		params.ChatName = &name
	}
	var res createChatResult
	if err := c.call(ctx, ProcCreateChat, params, &res); err != nil {
		return "", err
	}
	return res.ChatID, nil
}

// SendMessage delivers one message and returns the server-assigned id.
func (c *Client) SendMessage(ctx context.Context, chatID, content, messageType, attachmentURL string) (string, error) {
	var res sendMessageResult
	err := c.call(ctx, ProcSendMessage, sendMessageParams{
		ChatID:        chatID,
		Content:       content,
		MessageType:   messageType,
		AttachmentURL: attachmentURL,
	}, &res)
	if err != nil {
		return "", err
	}
	return res.MessageID, nil
}

// MarkRead zeroes the viewer's unread count for a chat.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	return c.call(ctx, ProcMarkRead, markReadParams{ChatID: chatID}, nil)
}

func (c *Client) call(ctx context.Context, name string, params, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc %s: encode params: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+name, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc %s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rpc %s: read response: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(name, resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rpc %s: decode response: %w", name, err)
	}
	return nil
}

func parseError(name string, statusCode int, data []byte) error {
	var apiErr Error
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		if apiErr.Code == "" {
			apiErr.Code = fmt.Sprintf("http_%d", statusCode)
		}
		return &apiErr
	}
	return &Error{
		Code:    fmt.Sprintf("http_%d", statusCode),
		Message: fmt.Sprintf("%s failed with status %d", name, statusCode),
		Detail:  strings.TrimSpace(string(data)),
	}
}
