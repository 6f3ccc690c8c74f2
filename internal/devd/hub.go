package devd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/plushhaven/chatkit/internal/api"
	"github.com/plushhaven/chatkit/internal/chat"
	"github.com/plushhaven/chatkit/internal/identity"
	"github.com/plushhaven/chatkit/internal/metrics"
)

const (
	writeWait     = 10 * time.Second
	keepAliveTick = 30 * time.Second
	sendBuffer    = 32
)

// wsFrame mirrors the client-side channel protocol.
type wsFrame struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Authorizer decides whether an actor may join a conversation room.
type Authorizer func(who identity.Identity, conversationID int64) bool

// Hub tracks connected websocket clients and fans messages out to the
// rooms they joined. Every subscriber of a room gets every message,
// including echoes of its own sends.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	canJoin Authorizer
	stats   *metrics.Collector
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(canJoin Authorizer, stats *metrics.Collector, log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		canJoin: canJoin,
		stats:   stats,
		log:     log,
	}
}

type wsClient struct {
	id    string
	who   identity.Identity
	conn  *websocket.Conn
	send  chan []byte
	rooms map[int64]struct{}
	mu    sync.Mutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer on the REST side; the dev
	// server accepts any websocket origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and runs the client's pumps until it
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, who identity.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := r.Header.Get("X-Client-ID")
	if id == "" {
		id = uuid.NewString()
	}

	c := &wsClient{
		id:    id,
		who:   who,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[int64]struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.stats.AddGauge(metrics.GaugeChannelClients, 1)
	h.log.Info("channel client connected", "client_id", c.id, "actor_id", who.ActorID, "role", who.Role)

	go c.writePump()
	h.readPump(c)
}

// Broadcast delivers a message to every client joined to its conversation
// room. Slow clients are disconnected rather than blocking the fanout.
func (h *Hub) Broadcast(msg chat.Message) {
	f := wsFrame{Type: "message", ConversationID: msg.ConversationID}
	payload, err := json.Marshal(api.PayloadFor(msg))
	if err != nil {
		h.log.Error("marshal broadcast payload", "error", err)
		return
	}
	f.Payload = payload
	raw, err := json.Marshal(f)
	if err != nil {
		h.log.Error("marshal broadcast frame", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.inRoom(msg.ConversationID) {
			continue
		}
		select {
		case c.send <- raw:
		default:
			h.log.Warn("dropping slow channel client", "client_id", c.id)
			c.conn.Close()
		}
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		c.conn.Close()
		h.stats.AddGauge(metrics.GaugeChannelClients, -1)
		h.log.Info("channel client disconnected", "client_id", c.id)
	}()

	for {
		var f wsFrame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Type {
		case "join":
			if !h.canJoin(c.who, f.ConversationID) {
				h.log.Warn("room join denied",
					"client_id", c.id, "actor_id", c.who.ActorID, "conversation_id", f.ConversationID)
				continue
			}
			c.join(f.ConversationID)
		case "leave":
			c.leave(f.ConversationID)
		default:
			// Unknown frame types are ignored so protocol additions do not
			// break older servers.
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(keepAliveTick)
	defer ticker.Stop()

	ka, _ := json.Marshal(wsFrame{Type: "ka"})
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, ka); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) join(conversationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[conversationID] = struct{}{}
}

func (c *wsClient) leave(conversationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, conversationID)
}

func (c *wsClient) inRoom(conversationID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[conversationID]
	return ok
}
