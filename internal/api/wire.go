package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/plushhaven/chatkit/internal/chat"
)

// FlexInt64 decodes a JSON number or a numeric string. Identifier fields
// have historically arrived in both shapes depending on the producer, so
// the wire layer coerces them to one numeric type before anything compares
// sender IDs.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("numeric string expected: %w", err)
		}
		*f = FlexInt64(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexInt64(n)
	return nil
}

// MessagePayload is the JSON shape of a message on both the REST and the
// realtime surface.
type MessagePayload struct {
	ID             FlexInt64 `json:"id"`
	ConversationID FlexInt64 `json:"conversationId"`
	SenderID       FlexInt64 `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      string    `json:"createdAt,omitempty"`
}

// Event converts the payload to a normalized channel event. An unparsable
// or missing timestamp becomes the zero time; the session substitutes
// receipt time.
func (p MessagePayload) Event() chat.Event {
	return chat.Event{
		ID:             int64(p.ID),
		ConversationID: int64(p.ConversationID),
		SenderID:       int64(p.SenderID),
		Content:        p.Content,
		CreatedAt:      parseWireTime(p.CreatedAt),
	}
}

// Message converts the payload to a confirmed transcript entry.
func (p MessagePayload) Message() chat.Message {
	return chat.Message{
		ID:             int64(p.ID),
		ConversationID: int64(p.ConversationID),
		SenderID:       int64(p.SenderID),
		Content:        p.Content,
		CreatedAt:      parseWireTime(p.CreatedAt),
		State:          chat.DeliveryConfirmed,
	}
}

// PayloadFor builds the wire shape for a stored message. Used by the dev
// server when fanning messages out.
func PayloadFor(m chat.Message) MessagePayload {
	return MessagePayload{
		ID:             FlexInt64(m.ID),
		ConversationID: FlexInt64(m.ConversationID),
		SenderID:       FlexInt64(m.SenderID),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
