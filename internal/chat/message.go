// Package chat implements the support-chat session core shared by the
// customer widget and the operator console: an in-memory message store,
// the optimistic-send reconciliation state machine, and the session
// lifecycle around it. Transport (REST gateway, realtime channel) is
// consumed through the narrow interfaces in deps.go.
package chat

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DeliveryState tracks whether a message has been confirmed by the server.
type DeliveryState string

const (
	// DeliveryPending marks an optimistically inserted message that has not
	// yet been reconciled with its server echo.
	DeliveryPending DeliveryState = "pending"
	// DeliveryConfirmed marks a message that originated from the realtime
	// channel or was reconciled from pending.
	DeliveryConfirmed DeliveryState = "confirmed"
)

// Message is one entry in a conversation transcript.
//
// A confirmed message carries the durable server-issued ID. A pending
// message has ID 0 and is addressed by its session-local LocalID until the
// echo arrives and reconciliation swaps the identifiers.
type Message struct {
	ID             int64         `json:"id"`
	LocalID        string        `json:"-"`
	ConversationID int64         `json:"conversationId"`
	SenderID       int64         `json:"senderId"`
	Content        string        `json:"content"`
	CreatedAt      time.Time     `json:"createdAt"`
	State          DeliveryState `json:"-"`
}

// Pending reports whether the message is still awaiting its server echo.
func (m Message) Pending() bool { return m.State == DeliveryPending }

// Conversation identifies one customer/operator thread.
type Conversation struct {
	ID int64 `json:"id"`
	// ParticipantLabel is the counterparty display name. Populated only on
	// conversation listings for the operator console.
	ParticipantLabel string `json:"participantLabel,omitempty"`
	LastActivityAt   time.Time `json:"lastActivityAt,omitempty"`
}

// Event is a normalized message-delivery notification from the realtime
// channel. SenderID is already coerced to int64; a zero CreatedAt means the
// transport did not carry a usable timestamp and receipt time applies.
type Event struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	CreatedAt      time.Time
}

// localSeq disambiguates local IDs generated within the same nanosecond.
var localSeq atomic.Uint64

// newLocalID returns a session-local identifier for an optimistic insert.
// IDs are timestamp-based and strictly unique within the process.
func newLocalID(now time.Time) string {
	return fmt.Sprintf("local-%d-%d", now.UnixNano(), localSeq.Add(1))
}
