package devd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/plushhaven/chatkit/internal/api"
	"github.com/plushhaven/chatkit/internal/chat"
	"github.com/plushhaven/chatkit/internal/config"
	"github.com/plushhaven/chatkit/internal/events"
	"github.com/plushhaven/chatkit/internal/identity"
	"github.com/plushhaven/chatkit/internal/metrics"
)

// Server assembles the dev chat server: store, hub, REST routes.
type Server struct {
	store  *Store
	hub    *Hub
	pub    events.Publisher
	stats  *metrics.Collector
	secret []byte
	log    *slog.Logger
	router chi.Router
}

// New builds the server. pub may be events.NopPublisher when no broker is
// configured.
func New(cfg config.DevConfig, pub events.Publisher, log *slog.Logger) *Server {
	s := &Server{
		store:  NewStore(),
		pub:    pub,
		stats:  metrics.NewCollector(),
		secret: []byte(cfg.Secret),
		log:    log,
	}
	s.hub = NewHub(s.canJoin, s.stats, log)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Dev-only token mint so the TUIs can log in without the storefront's
	// auth service.
	r.Post("/api/chat/token", s.mintToken)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.secret))

		r.Get("/ws", s.serveWS)

		r.With(requireRole(identity.RoleCustomer)).
			Post("/api/chat/conversations/resolve", s.resolveConversation)
		r.With(requireRole(identity.RoleOperator)).
			Get("/api/chat/conversations", s.listConversations)
		r.With(requireRole(identity.RoleOperator)).
			Get("/api/chat/stats", s.serveStats)
		r.Get("/api/chat/conversations/{id}/messages", s.history)
		r.Post("/api/chat/conversations/{id}/messages", s.submitMessage)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

// canJoin allows operators into any room and customers only into their own
// conversation.
func (s *Server) canJoin(who identity.Identity, conversationID int64) bool {
	if who.Role == identity.RoleOperator {
		return true
	}
	return s.store.OwnedBy(conversationID, who.ActorID)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, actorFrom(r.Context()))
}

func (s *Server) resolveConversation(w http.ResponseWriter, r *http.Request) {
	defer s.timed(metrics.OpResolve)()
	who := actorFrom(r.Context())
	label := who.Name
	if label == "" {
		label = "customer " + strconv.FormatInt(who.ActorID, 10)
	}
	conv, created := s.store.Resolve(who.ActorID, label)
	if created {
		s.stats.AddGauge(metrics.GaugeConversations, 1)
	}
	writeJSON(w, http.StatusOK, conversationJSON(conv))
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	defer s.timed(metrics.OpList)()
	convs := s.store.List()
	out := make([]map[string]any, len(convs))
	for i, conv := range convs {
		out[i] = conversationJSON(conv)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	defer s.timed(metrics.OpHistory)()
	convID, ok := s.conversationAccess(w, r)
	if !ok {
		return
	}
	history, ok := s.store.History(convID)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	out := make([]api.MessagePayload, len(history))
	for i, m := range history {
		out[i] = api.PayloadFor(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) submitMessage(w http.ResponseWriter, r *http.Request) {
	defer s.timed(metrics.OpSubmit)()
	convID, ok := s.conversationAccess(w, r)
	if !ok {
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		writeError(w, http.StatusUnprocessableEntity, "empty content")
		return
	}

	who := actorFrom(r.Context())
	msg, err := s.store.Append(convID, who.ActorID, content)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	// Accept first, deliver via the channel. The broker mirror is
	// fire-and-forget.
	start := time.Now()
	s.hub.Broadcast(msg)
	s.stats.RecordTiming(metrics.OpBroadcast, time.Since(start))
	s.stats.AddGauge(metrics.GaugeMessages, 1)
	go s.mirror(msg, who.Role)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) mirror(msg chat.Message, role identity.Role) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.pub.PublishMessageCreated(ctx, events.MessageCreated{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderRole:     string(role),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		s.log.Warn("event mirror failed", "message_id", msg.ID, "error", err)
	}
}

// mintToken issues a dev credential for the requested actor.
func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID int64  `json:"actorId"`
		Role    string `json:"role"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	who := identity.Identity{ActorID: body.ActorID, Role: identity.Role(body.Role), Name: body.Name}
	token, err := identity.Sign(who, s.secret, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// timed returns a stopper that records the enclosing handler's duration.
func (s *Server) timed(op string) func() {
	start := time.Now()
	return func() { s.stats.RecordTiming(op, time.Since(start)) }
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetSnapshot())
}

// conversationAccess parses the id and enforces that customers only touch
// their own conversation. Operators may touch any.
func (s *Server) conversationAccess(w http.ResponseWriter, r *http.Request) (int64, bool) {
	convID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad conversation id")
		return 0, false
	}
	who := actorFrom(r.Context())
	if who.Role != identity.RoleOperator && !s.store.OwnedBy(convID, who.ActorID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return convID, true
}

func conversationJSON(conv chat.Conversation) map[string]any {
	return map[string]any{
		"id":               conv.ID,
		"participantLabel": conv.ParticipantLabel,
		"lastActivityAt":   conv.LastActivityAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
