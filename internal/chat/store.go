package chat

// Store is the per-session ordered message sequence for one conversation.
//
// Entries are kept in arrival/reconciliation order, not CreatedAt order:
// two messages delivered out of chronological order stay in delivery order.
// Durable IDs are unique within a store; re-delivery of a known ID is
// discarded.
//
// A Store is confined to its owning session's event loop and is not safe
// for concurrent use.
type Store struct {
	msgs []Message
	seen map[int64]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{seen: make(map[int64]struct{})}
}

// Reset replaces the contents with a history snapshot. Entries are marked
// confirmed; duplicates within the snapshot are dropped.
func (s *Store) Reset(history []Message) {
	s.msgs = s.msgs[:0]
	s.seen = make(map[int64]struct{}, len(history))
	for _, m := range history {
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		m.State = DeliveryConfirmed
		m.LocalID = ""
		s.msgs = append(s.msgs, m)
		s.seen[m.ID] = struct{}{}
	}
}

// Append adds a confirmed message unless its durable ID is already present.
// Reports whether the message was added.
func (s *Store) Append(m Message) bool {
	if _, dup := s.seen[m.ID]; dup {
		return false
	}
	m.State = DeliveryConfirmed
	m.LocalID = ""
	s.msgs = append(s.msgs, m)
	s.seen[m.ID] = struct{}{}
	return true
}

// InsertPending appends an optimistic entry. The entry has no durable ID
// yet and does not participate in duplicate suppression.
func (s *Store) InsertPending(m Message) {
	m.State = DeliveryPending
	s.msgs = append(s.msgs, m)
}

// ResolvePending replaces the entry addressed by localID with the confirmed
// message, in place, preserving sequence position. Reports whether an entry
// was replaced.
func (s *Store) ResolvePending(localID string, confirmed Message) bool {
	for i := range s.msgs {
		if s.msgs[i].LocalID != localID {
			continue
		}
		confirmed.State = DeliveryConfirmed
		confirmed.LocalID = ""
		s.msgs[i] = confirmed
		s.seen[confirmed.ID] = struct{}{}
		return true
	}
	return false
}

// DropPending removes the entry addressed by localID. This is the only path
// that deletes a message from the store; it backs submission rollback.
func (s *Store) DropPending(localID string) (Message, bool) {
	for i := range s.msgs {
		if s.msgs[i].LocalID != localID {
			continue
		}
		m := s.msgs[i]
		s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
		return m, true
	}
	return Message{}, false
}

// Contains reports whether a durable ID is present.
func (s *Store) Contains(id int64) bool {
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of entries, pending included.
func (s *Store) Len() int { return len(s.msgs) }

// Messages returns the entries in display order. The returned slice is a
// copy; mutating it does not affect the store.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Last returns the newest entry, if any.
func (s *Store) Last() (Message, bool) {
	if len(s.msgs) == 0 {
		return Message{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}
