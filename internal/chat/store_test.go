package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plushhaven/chatkit/internal/chat"
)

func confirmedMsg(id int64, content string) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: 42,
		SenderID:       7,
		Content:        content,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Second),
	}
}

func TestStoreReset(t *testing.T) {
	st := chat.NewStore()
	st.InsertPending(chat.Message{LocalID: "local-1", Content: "stale"})

	st.Reset([]chat.Message{
		confirmedMsg(1, "hello"),
		confirmedMsg(2, "hi there"),
		confirmedMsg(1, "hello again"), // duplicate ID within the snapshot
	})

	msgs := st.Messages()
	require.Len(t, msgs, 2, "snapshot duplicates should be dropped")
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, int64(2), msgs[1].ID)
	for _, m := range msgs {
		assert.Equal(t, chat.DeliveryConfirmed, m.State)
		assert.Empty(t, m.LocalID)
	}
}

func TestStoreAppendDedup(t *testing.T) {
	st := chat.NewStore()

	assert.True(t, st.Append(confirmedMsg(55, "first delivery")))
	assert.False(t, st.Append(confirmedMsg(55, "second delivery")), "known durable ID should be discarded")
	assert.Equal(t, 1, st.Len())

	last, ok := st.Last()
	require.True(t, ok)
	assert.Equal(t, "first delivery", last.Content)
}

func TestStoreArrivalOrder(t *testing.T) {
	// Messages delivered out of chronological order keep delivery order.
	st := chat.NewStore()
	early := confirmedMsg(1, "early")
	late := confirmedMsg(2, "late")

	st.Append(late)
	st.Append(early)

	msgs := st.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "late", msgs[0].Content)
	assert.Equal(t, "early", msgs[1].Content)
}

func TestStoreResolvePendingInPlace(t *testing.T) {
	st := chat.NewStore()
	st.Append(confirmedMsg(1, "before"))
	st.InsertPending(chat.Message{LocalID: "local-9", SenderID: 7, Content: "mine", State: chat.DeliveryPending})
	st.Append(confirmedMsg(2, "after"))

	replaced := st.ResolvePending("local-9", confirmedMsg(901, "mine"))
	require.True(t, replaced)

	msgs := st.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(901), msgs[1].ID, "confirmed entry should keep the pending entry's position")
	assert.Equal(t, chat.DeliveryConfirmed, msgs[1].State)
	assert.Empty(t, msgs[1].LocalID)
	assert.True(t, st.Contains(901))

	assert.False(t, st.ResolvePending("local-9", confirmedMsg(902, "gone")), "resolved local ID should no longer match")
}

func TestStoreDropPending(t *testing.T) {
	st := chat.NewStore()
	st.Append(confirmedMsg(1, "kept"))
	st.InsertPending(chat.Message{LocalID: "local-3", Content: "doomed", State: chat.DeliveryPending})

	dropped, ok := st.DropPending("local-3")
	require.True(t, ok)
	assert.Equal(t, "doomed", dropped.Content)
	assert.Equal(t, 1, st.Len())

	_, ok = st.DropPending("local-3")
	assert.False(t, ok)
}

func TestStoreMessagesIsACopy(t *testing.T) {
	st := chat.NewStore()
	st.Append(confirmedMsg(1, "original"))

	msgs := st.Messages()
	msgs[0].Content = "mutated"

	fresh := st.Messages()
	assert.Equal(t, "original", fresh[0].Content)
}
