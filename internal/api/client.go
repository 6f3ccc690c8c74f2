// Package api provides the REST gateway client for the storefront chat
// endpoints: conversation resolution, history snapshots, message
// submission, and the operator conversation list.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/plushhaven/chatkit/internal/chat"
)

// Client calls the chat REST endpoints with a bearer credential.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given base URL and session token.
// Timeout can be configured via CHATKIT_CLIENT_TIMEOUT (default 15s).
func New(baseURL, token string) *Client {
	timeout := 15 * time.Second
	if t := os.Getenv("CHATKIT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Error is a non-2xx response from the gateway.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// errorPayload is the JSON error body of the chat endpoints.
type errorPayload struct {
	Error string `json:"error"`
}

// conversationPayload is the JSON shape of a conversation.
type conversationPayload struct {
	ID               FlexInt64 `json:"id"`
	ParticipantLabel string    `json:"participantLabel,omitempty"`
	LastActivityAt   string    `json:"lastActivityAt,omitempty"`
}

func (p conversationPayload) conversation() chat.Conversation {
	return chat.Conversation{
		ID:               int64(p.ID),
		ParticipantLabel: p.ParticipantLabel,
		LastActivityAt:   parseWireTime(p.LastActivityAt),
	}
}

// ResolveConversation fetches or creates the caller's conversation with the
// operator pool. Idempotent: the same actor always gets the same
// conversation back.
func (c *Client) ResolveConversation(ctx context.Context) (chat.Conversation, error) {
	var payload conversationPayload
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations/resolve", nil, &payload); err != nil {
		return chat.Conversation{}, fmt.Errorf("resolve conversation: %w", err)
	}
	return payload.conversation(), nil
}

// ListConversations returns the conversations visible to the caller,
// newest activity first. Operator credential required.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var payload []conversationPayload
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, &payload); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make([]chat.Conversation, len(payload))
	for i, p := range payload {
		convs[i] = p.conversation()
	}
	return convs, nil
}

// FetchHistory returns the full message history of a conversation in
// durable-ID order.
func (c *Client) FetchHistory(ctx context.Context, conversationID int64) ([]chat.Message, error) {
	var payload []MessagePayload
	path := fmt.Sprintf("/api/chat/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	msgs := make([]chat.Message, len(payload))
	for i, p := range payload {
		msgs[i] = p.Message()
	}
	return msgs, nil
}

// SubmitMessage persists a message. A nil error means accepted for
// delivery; the delivered message comes back over the realtime channel.
func (c *Client) SubmitMessage(ctx context.Context, conversationID int64, content string) error {
	body := struct {
		Content string `json:"content"`
	}{Content: content}
	path := fmt.Sprintf("/api/chat/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("submit message: %w", err)
	}
	return nil
}

// do issues one JSON request and decodes the response into result (when
// non-nil). Non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ep errorPayload
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &ep) == nil && ep.Error != "" {
			msg = ep.Error
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
