package ui_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/plushhaven/chatkit/internal/chat"
	"github.com/plushhaven/chatkit/internal/ui"
)

func TestRenderTranscript(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		{ID: 1, SenderID: 301, Content: "How can we help?", CreatedAt: at, State: chat.DeliveryConfirmed},
		{ID: 2, SenderID: 7, Content: "My otter lost an eye", CreatedAt: at, State: chat.DeliveryConfirmed},
		{LocalID: "local-1", SenderID: 7, Content: "Can you fix it?", CreatedAt: at, State: chat.DeliveryPending},
	}

	out := ui.RenderTranscript(ui.DefaultTheme, msgs, 7, "Support")

	assert.Contains(t, out, "Support")
	assert.Contains(t, out, "How can we help?")
	assert.Contains(t, out, "you")
	assert.Contains(t, out, "My otter lost an eye")
	assert.Contains(t, out, "Can you fix it? …", "pending sends render with a trailing marker")
}

func TestRenderTranscriptEmpty(t *testing.T) {
	out := ui.RenderTranscript(ui.DefaultTheme, nil, 7, "Support")
	assert.Contains(t, out, "No messages yet")
}

func TestRenderTranscriptUnknownSender(t *testing.T) {
	msgs := []chat.Message{
		{ID: 1, SenderID: 999, Content: "hi", CreatedAt: time.Now(), State: chat.DeliveryConfirmed},
	}
	out := ui.RenderTranscript(ui.DefaultTheme, msgs, 7, "")
	assert.Contains(t, out, "#999")
}
