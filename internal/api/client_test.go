package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plushhaven/chatkit/internal/api"
)

func TestResolveConversation(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat/conversations/resolve", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		calls++
		// The same conversation comes back on every call.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	client := api.New(srv.URL, "tok-123")
	for i := 0; i < 2; i++ {
		conv, err := client.ResolveConversation(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(42), conv.ID)
	}
	assert.Equal(t, 2, calls)
}

func TestFetchHistoryCoercesWireShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/conversations/42/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// senderId arrives as a number from some producers and as a
		// numeric string from others.
		_, _ = w.Write([]byte(`[
			{"id": 1, "conversationId": 42, "senderId": 7, "content": "hi", "createdAt": "2026-03-01T12:00:00Z"},
			{"id": 2, "conversationId": 42, "senderId": "301", "content": "hello", "createdAt": "not a timestamp"},
			{"id": 3, "conversationId": 42, "senderId": null, "content": "system note"}
		]`))
	}))
	defer srv.Close()

	client := api.New(srv.URL, "tok")
	msgs, err := client.FetchHistory(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, int64(7), msgs[0].SenderID)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	assert.Equal(t, int64(301), msgs[1].SenderID, "numeric string sender should coerce")
	assert.True(t, msgs[1].CreatedAt.IsZero(), "unparsable timestamp becomes zero time")

	assert.Zero(t, msgs[2].SenderID)
}

func TestSubmitMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat/conversations/42/messages", r.URL.Path)

		var body struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hi", body.Content)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	client := api.New(srv.URL, "tok")
	require.NoError(t, client.SubmitMessage(context.Background(), 42, "Hi"))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"json error body", http.StatusUnprocessableEntity, `{"error":"content must not be empty"}`, "content must not be empty"},
		{"plain body", http.StatusBadGateway, "upstream exploded", "upstream exploded"},
		{"forbidden", http.StatusForbidden, `{"error":"operator role required"}`, "operator role required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := api.New(srv.URL, "tok")
			err := client.SubmitMessage(context.Background(), 42, "Hi")

			var apiErr *api.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
		})
	}
}

func TestListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/conversations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 43, "participantLabel": "Basil", "lastActivityAt": "2026-03-02T09:00:00Z"},
			{"id": 42, "participantLabel": "Ada", "lastActivityAt": "2026-03-01T12:00:00Z"}
		]`))
	}))
	defer srv.Close()

	client := api.New(srv.URL, "tok")
	convs, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "Basil", convs[0].ParticipantLabel)
	assert.Equal(t, int64(42), convs[1].ID)
}
