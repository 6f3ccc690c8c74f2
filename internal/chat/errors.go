package chat

import "errors"

// Submit rejections. A rejected submit is a no-op: the state machine does
// not transition and nothing is inserted.
var (
	// ErrEmptyContent rejects whitespace-only input.
	ErrEmptyContent = errors.New("chat: empty message content")
	// ErrNoConversation rejects a submit before a conversation is resolved.
	ErrNoConversation = errors.New("chat: no active conversation")
	// ErrSendInFlight rejects a submit while another send is outstanding.
	ErrSendInFlight = errors.New("chat: send already in flight")
)

// ResolveError wraps a conversation resolution failure. The session stays
// uninitialized and the caller may retry; the rest of the application is
// unaffected.
type ResolveError struct {
	Err error
}

func (e *ResolveError) Error() string { return "chat: resolve conversation: " + e.Err.Error() }

func (e *ResolveError) Unwrap() error { return e.Err }
