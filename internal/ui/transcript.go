package ui

import (
	"fmt"
	"strings"

	"github.com/plushhaven/chatkit/internal/chat"
)

// RenderTranscript formats messages for the viewport, one line per message
// in arrival order. Pending sends are dimmed until their echo lands.
func RenderTranscript(theme Theme, msgs []chat.Message, selfID int64, otherLabel string) string {
	if len(msgs) == 0 {
		return theme.hintStyle().Render("No messages yet. Say hi!")
	}

	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(renderMessage(theme, m, selfID, otherLabel))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(theme Theme, m chat.Message, selfID int64, otherLabel string) string {
	stamp := m.CreatedAt.Local().Format("15:04")

	if m.Pending() {
		return theme.pendingStyle().Render(fmt.Sprintf("%s you: %s …", stamp, m.Content))
	}

	if m.SenderID == selfID {
		who := theme.selfStyle().Render("you")
		return fmt.Sprintf("%s %s: %s", stamp, who, m.Content)
	}

	label := otherLabel
	if label == "" {
		label = fmt.Sprintf("#%d", m.SenderID)
	}
	who := theme.otherStyle().Render(label)
	return fmt.Sprintf("%s %s: %s", stamp, who, m.Content)
}
