package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// SessionDeps holds the collaborators a customer session is built from.
// Identity is resolved once at startup and passed in here; the session
// never re-reads credentials.
type SessionDeps struct {
	SelfID    int64
	Resolver  ConversationResolver
	History   HistoryFetcher
	Submitter MessageSubmitter
	Rooms     Rooms
	Logger    *slog.Logger
}

// Session is the customer-side chat session: a single actor talking to the
// operator pool in one conversation, behind a widget that can be opened
// and closed.
//
// The session is confined to its owner's event loop. Methods that mutate
// state (ApplyOpen, Join, Close, Submit, FinishSend, HandleEvent) must run
// there. The I/O halves (Resolve, Send) only read state that is frozen
// while they run and may execute on another goroutine; their results are
// fed back into the loop.
type Session struct {
	selfID    int64
	resolver  ConversationResolver
	history   HistoryFetcher
	submitter MessageSubmitter
	rooms     Rooms
	log       *slog.Logger

	conv   *Conversation
	store  *Store
	out    outbox
	joined bool
}

// NewSession creates a closed session. Open (or Resolve+ApplyOpen)
// initializes it.
func NewSession(deps SessionDeps) *Session {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		selfID:    deps.SelfID,
		resolver:  deps.Resolver,
		history:   deps.History,
		submitter: deps.Submitter,
		rooms:     deps.Rooms,
		log:       log,
		store:     NewStore(),
	}
}

// Resolve is the I/O half of opening: it resolves the conversation (the
// cached one is reused after the first open) and fetches the history
// snapshot. A resolution failure returns *ResolveError and leaves the
// session untouched; a history failure is logged and an empty snapshot is
// returned, since a blank transcript beats a dead widget.
func (s *Session) Resolve(ctx context.Context) (Conversation, []Message, error) {
	conv := Conversation{}
	if s.conv != nil {
		conv = *s.conv
	} else {
		resolved, err := s.resolver.ResolveConversation(ctx)
		if err != nil {
			return Conversation{}, nil, &ResolveError{Err: err}
		}
		conv = resolved
	}

	history, err := s.history.FetchHistory(ctx, conv.ID)
	if err != nil {
		s.log.Error("chat history fetch failed",
			"conversation_id", conv.ID, "error", err)
		return conv, nil, nil
	}
	return conv, history, nil
}

// ApplyOpen installs the resolved conversation and history snapshot,
// moving the session to open. Must run on the event loop.
func (s *Session) ApplyOpen(conv Conversation, history []Message) {
	s.conv = &conv
	s.store.Reset(history)
}

// Open resolves and applies in one call, for callers without an event
// loop of their own.
func (s *Session) Open(ctx context.Context) error {
	conv, history, err := s.Resolve(ctx)
	if err != nil {
		return err
	}
	s.ApplyOpen(conv, history)
	return nil
}

// Join subscribes the session to its conversation's room. Requires a
// successful open.
func (s *Session) Join() error {
	if s.conv == nil {
		return ErrNoConversation
	}
	if s.joined {
		return nil
	}
	if err := s.rooms.JoinRoom(s.conv.ID); err != nil {
		return err
	}
	s.joined = true
	return nil
}

// Close leaves the room. The underlying channel connection is owned by the
// application, not the session, and stays up for the process lifetime.
func (s *Session) Close() error {
	if !s.joined {
		return nil
	}
	s.joined = false
	return s.rooms.LeaveRoom(s.conv.ID)
}

// Submit validates content and performs the optimistic insert. It rejects
// whitespace-only input, an unresolved conversation, and a second send
// while one is outstanding; rejection leaves the store untouched.
//
// The returned message is the pending entry. The caller must then run Send
// (typically async) and route its result through FinishSend.
func (s *Session) Submit(content string) (Message, error) {
	return submit(&s.out, s.store, s.conv, s.selfID, content)
}

// Send issues the gateway call for a submitted message. It touches no
// session state, only its arguments, so it is safe to run off the event
// loop even while the loop mutates the session.
func (s *Session) Send(ctx context.Context, m Message) error {
	return s.submitter.SubmitMessage(ctx, m.ConversationID, m.Content)
}

// FinishSend completes the gateway half of a send cycle. On failure the
// pending entry is rolled back and the original content is returned for
// the input field; on success the session stays in the sending state until
// the channel echo reconciles it.
func (s *Session) FinishSend(err error) (draft string, rolledBack bool) {
	return finishSend(&s.out, s.store, s.log, err)
}

// HandleEvent merges one realtime channel event into the transcript,
// reconciling the outstanding send when the event is this actor's echo.
func (s *Session) HandleEvent(ev Event) Change {
	if s.conv == nil {
		return ChangeNone
	}
	return integrate(s.store, &s.out, s.selfID, s.conv.ID, ev, time.Now())
}

// Sending reports whether a send is outstanding.
func (s *Session) Sending() bool { return s.out.sending() }

// SelfID returns the local actor's id.
func (s *Session) SelfID() int64 { return s.selfID }

// Joined reports whether the room subscription is active.
func (s *Session) Joined() bool { return s.joined }

// Conversation returns the resolved conversation, if any.
func (s *Session) Conversation() (Conversation, bool) {
	if s.conv == nil {
		return Conversation{}, false
	}
	return *s.conv, true
}

// Messages returns the transcript in display order.
func (s *Session) Messages() []Message { return s.store.Messages() }

// submit is the optimistic-insert half of the send cycle, shared with
// Console.
func submit(out *outbox, st *Store, conv *Conversation, selfID int64, content string) (Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, ErrEmptyContent
	}
	if conv == nil {
		return Message{}, ErrNoConversation
	}
	if out.sending() {
		return Message{}, ErrSendInFlight
	}

	now := time.Now()
	pending := Message{
		LocalID:        newLocalID(now),
		ConversationID: conv.ID,
		SenderID:       selfID,
		Content:        trimmed,
		CreatedAt:      now,
		State:          DeliveryPending,
	}
	st.InsertPending(pending)
	out.begin(pending.LocalID, trimmed)
	return pending, nil
}

// finishSend is the gateway-result half of the send cycle, shared with
// Console.
func finishSend(out *outbox, st *Store, log *slog.Logger, err error) (string, bool) {
	if !out.sending() {
		return "", false
	}
	if err == nil {
		return "", false
	}
	localID := out.localID
	draft := out.fail()
	if _, ok := st.DropPending(localID); !ok {
		log.Warn("pending message missing on rollback", "local_id", localID)
	}
	log.Error("chat message submission failed", "error", err)
	return draft, true
}
