package chat

import "time"

// Change describes what an incoming channel event did to a store.
type Change int

const (
	// ChangeNone: the event was a duplicate or addressed another
	// conversation; nothing was mutated.
	ChangeNone Change = iota
	// ChangeAppended: a new confirmed entry was appended in arrival order.
	ChangeAppended
	// ChangeReconciled: the outstanding pending entry was replaced by its
	// server echo and the send cycle completed.
	ChangeReconciled
)

// Mutated reports whether the view should scroll to the newest entry.
func (c Change) Mutated() bool { return c != ChangeNone }

// outbox tracks the single in-flight send of a session. The UI serializes
// sends: while localID is set no new submit is accepted.
type outbox struct {
	localID string
	draft   string
}

func (o *outbox) sending() bool { return o.localID != "" }

func (o *outbox) begin(localID, draft string) {
	o.localID = localID
	o.draft = draft
}

// fail clears the outstanding send and returns the original content so the
// caller can restore it to the input field.
func (o *outbox) fail() string {
	draft := o.draft
	o.localID = ""
	o.draft = ""
	return draft
}

func (o *outbox) settle() {
	o.localID = ""
	o.draft = ""
}

// integrate applies one normalized channel event to a store. It is the
// reconciliation routine shared by Session and Console.
//
// If a send is outstanding and the event is self-authored, the event is
// taken as that send's echo: the pending entry is replaced in place and the
// send cycle ends. This assumes the next self-authored event after a send
// belongs to it, which holds while sends are serialized; a transport-level
// correlation token would be needed to do better.
//
// Any other event is appended in arrival order unless its durable ID is
// already present. Events for other conversations are dropped.
func integrate(st *Store, out *outbox, selfID, conversationID int64, ev Event, now time.Time) Change {
	if ev.ConversationID != conversationID {
		return ChangeNone
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	msg := Message{
		ID:             ev.ID,
		ConversationID: ev.ConversationID,
		SenderID:       ev.SenderID,
		Content:        ev.Content,
		CreatedAt:      ev.CreatedAt,
	}

	if out.sending() && ev.SenderID == selfID {
		if st.ResolvePending(out.localID, msg) {
			out.settle()
			return ChangeReconciled
		}
		// Pending entry vanished underneath us; treat as a plain delivery.
		out.settle()
	}

	if st.Append(msg) {
		return ChangeAppended
	}
	return ChangeNone
}
