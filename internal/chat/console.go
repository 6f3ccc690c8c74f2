package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ConsoleDeps holds the collaborators an operator console is built from.
type ConsoleDeps struct {
	SelfID    int64
	Lister    ConversationLister
	History   HistoryFetcher
	Submitter MessageSubmitter
	Rooms     Rooms
	Logger    *slog.Logger
}

// Console is the operator-side chat session: one operator working a list
// of customer conversations, one active at a time. Conversations are
// pre-listed rather than resolved; switching the active conversation moves
// the single room subscription.
//
// Confinement follows Session: FetchConversations, FetchHistory and Send
// are read-only I/O halves safe off the event loop; everything else runs
// on it.
type Console struct {
	selfID    int64
	lister    ConversationLister
	history   HistoryFetcher
	submitter MessageSubmitter
	rooms     Rooms
	log       *slog.Logger

	convs  []Conversation
	active *Conversation
	store  *Store
	out    outbox
}

// NewConsole creates a console with no conversations loaded.
func NewConsole(deps ConsoleDeps) *Console {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		selfID:    deps.SelfID,
		lister:    deps.Lister,
		history:   deps.History,
		submitter: deps.Submitter,
		rooms:     deps.Rooms,
		log:       log,
		store:     NewStore(),
	}
}

// FetchConversations lists the operator's conversations. Read-only I/O
// half; the result is installed with SetConversations.
func (c *Console) FetchConversations(ctx context.Context) ([]Conversation, error) {
	convs, err := c.lister.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// SetConversations replaces the cached conversation list.
func (c *Console) SetConversations(convs []Conversation) {
	c.convs = convs
}

// Refresh fetches and installs the conversation list in one call.
func (c *Console) Refresh(ctx context.Context) error {
	convs, err := c.FetchConversations(ctx)
	if err != nil {
		return err
	}
	c.SetConversations(convs)
	return nil
}

// Conversations returns the last loaded conversation list.
func (c *Console) Conversations() []Conversation { return c.convs }

// FetchHistory loads a conversation's snapshot. Read-only I/O half; feed
// the result to Activate. A failed fetch may be tolerated by activating
// with a nil history, per Switch.
func (c *Console) FetchHistory(ctx context.Context, conversationID int64) ([]Message, error) {
	return c.history.FetchHistory(ctx, conversationID)
}

// Activate switches the active conversation: the previous room is left,
// the store is reset to the given history, and the new room is joined.
// Exactly one room subscription is active at a time. An outstanding send
// for the previous conversation is abandoned; its echo, if any, no longer
// concerns this transcript.
func (c *Console) Activate(conv Conversation, history []Message) error {
	if c.active != nil {
		if c.active.ID == conv.ID {
			return nil
		}
		if err := c.rooms.LeaveRoom(c.active.ID); err != nil {
			c.log.Warn("leave room failed", "conversation_id", c.active.ID, "error", err)
		}
		c.active = nil
		c.out.settle()
	}

	c.store.Reset(history)
	if err := c.rooms.JoinRoom(conv.ID); err != nil {
		return fmt.Errorf("join room %d: %w", conv.ID, err)
	}
	c.active = &conv
	return nil
}

// Switch fetches history and activates in one call, for callers without
// an event loop. A history failure is logged and the transcript starts
// empty.
func (c *Console) Switch(ctx context.Context, conv Conversation) error {
	history, err := c.FetchHistory(ctx, conv.ID)
	if err != nil {
		c.log.Error("chat history fetch failed",
			"conversation_id", conv.ID, "error", err)
		history = nil
	}
	return c.Activate(conv, history)
}

// Close leaves the active room, if any. The console owns its channel
// connection lifetime, so callers disconnect the channel after Close.
func (c *Console) Close() error {
	if c.active == nil {
		return nil
	}
	id := c.active.ID
	c.active = nil
	c.out.settle()
	return c.rooms.LeaveRoom(id)
}

// Submit performs the optimistic insert into the active conversation.
// Same rejection rules as Session.Submit.
func (c *Console) Submit(content string) (Message, error) {
	return submit(&c.out, c.store, c.active, c.selfID, content)
}

// Send issues the gateway call for a submitted message. Stateless like
// Session.Send.
func (c *Console) Send(ctx context.Context, m Message) error {
	return c.submitter.SubmitMessage(ctx, m.ConversationID, m.Content)
}

// FinishSend completes the gateway half of a send cycle; see
// Session.FinishSend.
func (c *Console) FinishSend(err error) (draft string, rolledBack bool) {
	return finishSend(&c.out, c.store, c.log, err)
}

// HandleEvent merges one channel event into the active transcript.
func (c *Console) HandleEvent(ev Event) Change {
	if c.active == nil {
		return ChangeNone
	}
	return integrate(c.store, &c.out, c.selfID, c.active.ID, ev, time.Now())
}

// Sending reports whether a send is outstanding.
func (c *Console) Sending() bool { return c.out.sending() }

// SelfID returns the operator's actor id.
func (c *Console) SelfID() int64 { return c.selfID }

// Active returns the active conversation, if any.
func (c *Console) Active() (Conversation, bool) {
	if c.active == nil {
		return Conversation{}, false
	}
	return *c.active, true
}

// Messages returns the active transcript in display order.
func (c *Console) Messages() []Message { return c.store.Messages() }
