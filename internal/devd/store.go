// Package devd is the development chat server: an in-memory conversation
// store, a websocket hub with per-conversation rooms, and the REST
// endpoints the chat clients consume. It exists so the TUIs and the
// integration tests run against the real wire protocol without the
// storefront backend.
package devd

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/plushhaven/chatkit/internal/chat"
)

// Store holds conversations and messages in memory. Unlike the client-side
// chat.Store this one is shared across request goroutines and locks.
type Store struct {
	mu         sync.Mutex
	nextConvID int64
	nextMsgID  int64
	byCustomer map[int64]*conversation
	byID       map[int64]*conversation
}

type conversation struct {
	id           int64
	customerID   int64
	label        string
	lastActivity time.Time
	msgs         []chat.Message
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byCustomer: make(map[int64]*conversation),
		byID:       make(map[int64]*conversation),
	}
}

// Resolve returns the customer's conversation with the operator pool,
// creating it on first call. Idempotent per customer; created reports
// whether this call created it.
func (s *Store) Resolve(customerID int64, label string) (_ chat.Conversation, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byCustomer[customerID]
	if !ok {
		s.nextConvID++
		conv = &conversation{
			id:           s.nextConvID,
			customerID:   customerID,
			label:        label,
			lastActivity: time.Now(),
		}
		s.byCustomer[customerID] = conv
		s.byID[conv.id] = conv
		created = true
	}
	return conv.view(), created
}

// List returns all conversations, newest activity first.
func (s *Store) List() []chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.Conversation, 0, len(s.byID))
	for _, conv := range s.byID {
		out = append(out, conv.view())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// History returns a conversation's messages in durable-ID order.
func (s *Store) History(conversationID int64) ([]chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	if !ok {
		return nil, false
	}
	out := make([]chat.Message, len(conv.msgs))
	copy(out, conv.msgs)
	return out, true
}

// OwnedBy reports whether the conversation belongs to the customer.
func (s *Store) OwnedBy(conversationID, customerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	return ok && conv.customerID == customerID
}

// Append persists a message and assigns its durable ID.
func (s *Store) Append(conversationID, senderID int64, content string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[conversationID]
	if !ok {
		return chat.Message{}, fmt.Errorf("devd: unknown conversation %d", conversationID)
	}

	s.nextMsgID++
	msg := chat.Message{
		ID:             s.nextMsgID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
		State:          chat.DeliveryConfirmed,
	}
	conv.msgs = append(conv.msgs, msg)
	conv.lastActivity = msg.CreatedAt
	return msg, nil
}

func (c *conversation) view() chat.Conversation {
	return chat.Conversation{
		ID:               c.id,
		ParticipantLabel: c.label,
		LastActivityAt:   c.lastActivity,
	}
}
