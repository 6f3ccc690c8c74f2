// Package events mirrors chat activity onto a RabbitMQ topic exchange for
// back-office consumers (notification fanout, analytics). The mirror is
// fire-and-forget: chat delivery never depends on the broker.
package events

import "time"

// Routing keys, versioned per event type.
const (
	KeyMessageCreated = "chat.message.created.v1"
)

// Meta carries event identity and correlation.
type Meta struct {
	// ID is the unique event id.
	ID string `json:"id"`
	// CorrelationID ties the event to the originating request, when known.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Producer is the emitting service.
	Producer string `json:"producer,omitempty"`
	// Time is when the event was emitted.
	Time time.Time `json:"time"`
	// Type is the event name and version, e.g. chat.message.created.v1.
	Type string `json:"type"`
}

// Envelope wraps one event payload with its meta.
type Envelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// MessageCreated is emitted once per persisted chat message.
type MessageCreated struct {
	MessageID      int64     `json:"message_id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderRole     string    `json:"sender_role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
