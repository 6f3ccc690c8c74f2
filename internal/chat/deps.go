package chat

import "context"

// ConversationResolver obtains the single conversation between the current
// actor and the counterparty role, creating it if none exists. Repeated
// calls for the same actor return the same conversation.
type ConversationResolver interface {
	ResolveConversation(ctx context.Context) (Conversation, error)
}

// HistoryFetcher returns the full message history of a conversation in
// durable-ID order.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, conversationID int64) ([]Message, error)
}

// MessageSubmitter persists a message for delivery. A nil error means
// "accepted for delivery", not "delivered": the delivered message arrives
// back through the realtime channel.
type MessageSubmitter interface {
	SubmitMessage(ctx context.Context, conversationID int64, content string) error
}

// ConversationLister enumerates the conversations visible to an operator.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
}

// Rooms controls which conversation rooms the realtime channel delivers
// events for. Implementations deliver events for joined rooms, including
// the subscriber's own sent messages.
type Rooms interface {
	JoinRoom(conversationID int64) error
	LeaveRoom(conversationID int64) error
}
