package devd_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plushhaven/chatkit/internal/api"
	"github.com/plushhaven/chatkit/internal/chat"
	"github.com/plushhaven/chatkit/internal/config"
	"github.com/plushhaven/chatkit/internal/devd"
	"github.com/plushhaven/chatkit/internal/events"
	"github.com/plushhaven/chatkit/internal/identity"
	"github.com/plushhaven/chatkit/internal/realtime"
)

const testSecret = "test-secret"

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DevConfig{
		Secret:        testSecret,
		AllowedOrigin: "http://localhost:5173",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(devd.New(cfg, events.NopPublisher{}, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func mintToken(t *testing.T, who identity.Identity) string {
	t.Helper()
	token, err := identity.Sign(who, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func customerClient(t *testing.T, srv *httptest.Server, actorID int64, name string) *api.Client {
	t.Helper()
	token := mintToken(t, identity.Identity{ActorID: actorID, Role: identity.RoleCustomer, Name: name})
	return api.New(srv.URL, token)
}

func operatorClient(t *testing.T, srv *httptest.Server) *api.Client {
	t.Helper()
	token := mintToken(t, identity.Identity{ActorID: 301, Role: identity.RoleOperator, Name: "Basil"})
	return api.New(srv.URL, token)
}

// dialChannel connects the real client channel stack to the test server.
func dialChannel(t *testing.T, srv *httptest.Server, token string) *realtime.Conn {
	t.Helper()
	conn := realtime.NewConn(realtime.DeriveChannelURL(srv.URL), token,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, conn.Acquire())
	t.Cleanup(conn.Release)
	return conn
}

// waitEvent receives one channel event or fails the test.
func waitEvent(t *testing.T, conn *realtime.Conn) chat.Event {
	t.Helper()
	select {
	case ev, ok := <-conn.Events():
		require.True(t, ok, "channel closed while waiting for event")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel event")
		return chat.Event{}
	}
}

// settle gives the server's read pump time to process a join frame before
// anything is broadcast.
func settle() { time.Sleep(50 * time.Millisecond) }

func TestResolveConversationIdempotent(t *testing.T) {
	srv := startServer(t)
	client := customerClient(t, srv, 7, "Ada")

	first, err := client.ResolveConversation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.ParticipantLabel)

	second, err := client.ResolveConversation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "the same customer always gets the same conversation")

	other, err := customerClient(t, srv, 8, "Basil").ResolveConversation(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestAuthEnforcement(t *testing.T) {
	srv := startServer(t)

	t.Run("missing credential", func(t *testing.T) {
		client := api.New(srv.URL, "")
		_, err := client.ResolveConversation(context.Background())
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
	})

	t.Run("forged credential", func(t *testing.T) {
		token, err := identity.Sign(
			identity.Identity{ActorID: 7, Role: identity.RoleCustomer},
			[]byte("wrong-secret"), time.Hour)
		require.NoError(t, err)

		client := api.New(srv.URL, token)
		_, err = client.ResolveConversation(context.Background())
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
	})

	t.Run("customer cannot list conversations", func(t *testing.T) {
		client := customerClient(t, srv, 7, "Ada")
		_, err := client.ListConversations(context.Background())
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
	})

	t.Run("operator cannot resolve", func(t *testing.T) {
		client := operatorClient(t, srv)
		_, err := client.ResolveConversation(context.Background())
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
	})

	t.Run("customer cannot read another customer's history", func(t *testing.T) {
		ada := customerClient(t, srv, 7, "Ada")
		conv, err := ada.ResolveConversation(context.Background())
		require.NoError(t, err)

		basil := customerClient(t, srv, 8, "Basil")
		_, err = basil.FetchHistory(context.Background(), conv.ID)
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.Status)
	})
}

func TestSubmitValidation(t *testing.T) {
	srv := startServer(t)
	client := customerClient(t, srv, 7, "Ada")
	conv, err := client.ResolveConversation(context.Background())
	require.NoError(t, err)

	err = client.SubmitMessage(context.Background(), conv.ID, "   ")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)

	err = operatorClient(t, srv).SubmitMessage(context.Background(), 999, "hello?")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestSubmitBroadcastsToRoom(t *testing.T) {
	srv := startServer(t)

	customerToken := mintToken(t, identity.Identity{ActorID: 7, Role: identity.RoleCustomer, Name: "Ada"})
	client := api.New(srv.URL, customerToken)
	conv, err := client.ResolveConversation(context.Background())
	require.NoError(t, err)

	// Customer and operator both subscribe to the room.
	customerConn := dialChannel(t, srv, customerToken)
	require.NoError(t, customerConn.JoinRoom(conv.ID))

	operatorToken := mintToken(t, identity.Identity{ActorID: 301, Role: identity.RoleOperator, Name: "Basil"})
	operatorConn := dialChannel(t, srv, operatorToken)
	require.NoError(t, operatorConn.JoinRoom(conv.ID))
	settle()

	require.NoError(t, client.SubmitMessage(context.Background(), conv.ID, "Hi"))

	// The sender receives its own echo; the operator receives the same
	// delivery.
	for _, conn := range []*realtime.Conn{customerConn, operatorConn} {
		ev := waitEvent(t, conn)
		assert.Equal(t, conv.ID, ev.ConversationID)
		assert.Equal(t, int64(7), ev.SenderID)
		assert.Equal(t, "Hi", ev.Content)
		assert.NotZero(t, ev.ID, "the broadcast carries the durable ID")
		assert.False(t, ev.CreatedAt.IsZero())
	}

	history, err := client.FetchHistory(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Hi", history[0].Content)
}

func TestRoomIsolation(t *testing.T) {
	srv := startServer(t)

	adaToken := mintToken(t, identity.Identity{ActorID: 7, Role: identity.RoleCustomer, Name: "Ada"})
	ada := api.New(srv.URL, adaToken)
	adaConv, err := ada.ResolveConversation(context.Background())
	require.NoError(t, err)

	basilToken := mintToken(t, identity.Identity{ActorID: 8, Role: identity.RoleCustomer, Name: "Basil"})
	basil := api.New(srv.URL, basilToken)
	_, err = basil.ResolveConversation(context.Background())
	require.NoError(t, err)

	// Basil tries to join Ada's room; the hub denies the join, so Ada's
	// messages never reach him.
	basilConn := dialChannel(t, srv, basilToken)
	require.NoError(t, basilConn.JoinRoom(adaConv.ID))
	settle()

	require.NoError(t, ada.SubmitMessage(context.Background(), adaConv.ID, "private"))

	select {
	case ev := <-basilConn.Events():
		t.Fatalf("leaked event for conversation %d to an outsider", ev.ConversationID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	srv := startServer(t)

	token := mintToken(t, identity.Identity{ActorID: 7, Role: identity.RoleCustomer, Name: "Ada"})
	client := api.New(srv.URL, token)
	conv, err := client.ResolveConversation(context.Background())
	require.NoError(t, err)

	conn := dialChannel(t, srv, token)
	require.NoError(t, conn.JoinRoom(conv.ID))
	settle()

	require.NoError(t, client.SubmitMessage(context.Background(), conv.ID, "first"))
	assert.Equal(t, "first", waitEvent(t, conn).Content)

	require.NoError(t, conn.LeaveRoom(conv.ID))
	settle()

	require.NoError(t, client.SubmitMessage(context.Background(), conv.ID, "second"))
	select {
	case ev := <-conn.Events():
		t.Fatalf("received %q after leaving the room", ev.Content)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestOperatorListsNewestFirst(t *testing.T) {
	srv := startServer(t)

	ada := customerClient(t, srv, 7, "Ada")
	adaConv, err := ada.ResolveConversation(context.Background())
	require.NoError(t, err)

	basil := customerClient(t, srv, 8, "Basil")
	basilConv, err := basil.ResolveConversation(context.Background())
	require.NoError(t, err)

	// Ada's conversation becomes the most recently active one.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, ada.SubmitMessage(context.Background(), adaConv.ID, "hello?"))

	convs, err := operatorClient(t, srv).ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, adaConv.ID, convs[0].ID)
	assert.Equal(t, basilConv.ID, convs[1].ID)
}

func TestMintToken(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Post(srv.URL+"/api/chat/token", "application/json",
		strings.NewReader(`{"actorId": 7, "role": "customer", "name": "Ada"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	who, err := identity.Verify(body.Token, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{ActorID: 7, Role: identity.RoleCustomer, Name: "Ada"}, who)
}

func TestStatsEndpoint(t *testing.T) {
	srv := startServer(t)

	client := customerClient(t, srv, 7, "Ada")
	conv, err := client.ResolveConversation(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.SubmitMessage(context.Background(), conv.ID, "Hi"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/chat/stats", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+mintToken(t,
		identity.Identity{ActorID: 301, Role: identity.RoleOperator}))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var snap struct {
		Operations map[string]struct {
			Count int64 `json:"count"`
		} `json:"operations"`
		Gauges map[string]int64 `json:"gauges"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, int64(1), snap.Operations["resolve"].Count)
	assert.Equal(t, int64(1), snap.Operations["submit"].Count)
	assert.Equal(t, int64(1), snap.Gauges["conversations"])
	assert.Equal(t, int64(1), snap.Gauges["messages"])

	// Customers get turned away.
	req.Header.Set("Authorization", "Bearer "+mintToken(t,
		identity.Identity{ActorID: 7, Role: identity.RoleCustomer}))
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, 403, resp2.StatusCode)
}
