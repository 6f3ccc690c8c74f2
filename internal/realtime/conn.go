// Package realtime implements the websocket message channel: an explicitly
// owned, reference-counted connection plus per-conversation room control.
//
// The connection is created once and injected into whatever needs it. The
// customer widget acquires it at application startup and holds it for the
// process lifetime; the operator console acquires on start and releases on
// exit. Both lifetimes are intentional and differ; the refcount serves
// whichever owner is in play without hidden module-level state.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/plushhaven/chatkit/internal/api"
	"github.com/plushhaven/chatkit/internal/chat"
)

// Frame types of the channel protocol.
const (
	frameJoin      = "join"
	frameLeave     = "leave"
	frameMessage   = "message"
	frameKeepAlive = "ka"
)

// frame is one JSON message on the channel, in either direction.
type frame struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// eventBuffer sizes the delivery channel. The consumer is a UI event loop;
// a short buffer absorbs bursts without the read loop blocking on render.
const eventBuffer = 64

// ErrNotConnected is returned for room control without an acquired
// connection.
var ErrNotConnected = errors.New("realtime: not connected")

// Conn is the shared channel connection. Acquire/Release manage the
// underlying websocket: the first Acquire dials, the last Release closes.
// JoinRoom/LeaveRoom implement chat.Rooms.
type Conn struct {
	url   string
	token string
	log   *slog.Logger

	mu     sync.Mutex
	refs   int
	ws     *websocket.Conn
	events chan chat.Event
}

// NewConn creates an unconnected channel handle.
func NewConn(channelURL, token string, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{url: channelURL, token: token, log: log}
}

// DeriveChannelURL maps the REST base URL to the websocket endpoint.
func DeriveChannelURL(serverURL string) string {
	ws := serverURL
	ws = strings.Replace(ws, "http://", "ws://", 1)
	ws = strings.Replace(ws, "https://", "wss://", 1)
	return strings.TrimRight(ws, "/") + "/ws"
}

// Acquire takes a reference, dialing on the first one. Safe to call from
// multiple owners; each Acquire must be paired with one Release.
func (c *Conn) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs > 0 {
		c.refs++
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	// A per-connection id helps correlate server-side logs with a client.
	header.Set("X-Client-ID", uuid.NewString())

	ws, _, err := dialer.Dial(c.url, header)
	if err != nil {
		return fmt.Errorf("realtime: dial %s: %w", c.url, err)
	}

	c.ws = ws
	c.refs = 1
	c.events = make(chan chat.Event, eventBuffer)
	go c.readLoop(ws, c.events)
	return nil
}

// Release drops a reference, closing the websocket when none remain.
func (c *Conn) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refs == 0 {
		return
	}
	c.refs--
	if c.refs > 0 {
		return
	}
	c.ws.Close()
	c.ws = nil
}

// Events returns the delivery channel for the current connection. It is
// closed when the connection ends. Returns nil before the first Acquire.
func (c *Conn) Events() <-chan chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// JoinRoom subscribes to a conversation's message events.
func (c *Conn) JoinRoom(conversationID int64) error {
	return c.send(frame{Type: frameJoin, ConversationID: conversationID})
}

// LeaveRoom unsubscribes from a conversation's message events.
func (c *Conn) LeaveRoom(conversationID int64) error {
	return c.send(frame{Type: frameLeave, ConversationID: conversationID})
}

func (c *Conn) send(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	if err := c.ws.WriteJSON(f); err != nil {
		return fmt.Errorf("realtime: write %s: %w", f.Type, err)
	}
	return nil
}

// readLoop decodes frames until the connection dies. Malformed frames are
// logged and skipped, never propagated.
func (c *Conn) readLoop(ws *websocket.Conn, events chan<- chat.Event) {
	defer close(events)
	for {
		var f frame
		if err := ws.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.log.Warn("realtime connection closed", "error", err)
			return
		}

		switch f.Type {
		case frameMessage:
			var payload api.MessagePayload
			if err := json.Unmarshal(f.Payload, &payload); err != nil {
				c.log.Warn("malformed message event", "error", err)
				continue
			}
			events <- payload.Event()
		case frameKeepAlive:
			continue
		default:
			continue
		}
	}
}
