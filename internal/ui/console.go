package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"github.com/plushhaven/chatkit/internal/chat"
)

type (
	// refreshedMsg carries a freshly fetched conversation list.
	refreshedMsg struct {
		convs []chat.Conversation
		err   error
	}
	// activatedMsg carries the history snapshot for a conversation
	// switch. A failed fetch arrives with a nil history; the switch
	// proceeds with an empty transcript.
	activatedMsg struct {
		conv       chat.Conversation
		history    []chat.Message
		historyErr error
	}
	// consoleSendResultMsg reports the gateway half of an operator send.
	consoleSendResultMsg struct{ err error }
)

// ConsoleModel is the operator console: a conversation list pane on the
// left, the active transcript on the right.
type ConsoleModel struct {
	cons   *chat.Console
	events <-chan chat.Event
	theme  Theme
	log    *slog.Logger

	vp    viewport.Model
	input textinput.Model

	width     int
	height    int
	cursor    int
	switching bool
	focusList bool
	status    string
	fatal     error
}

// NewConsole builds the console UI. The realtime connection must already be
// acquired; it is released by the caller when the program exits, giving the
// console its session-scoped channel lifetime.
func NewConsole(cons *chat.Console, events <-chan chat.Event, log *slog.Logger) ConsoleModel {
	input := textinput.New()
	input.Placeholder = "Reply to customer"
	input.CharLimit = 2000
	if log == nil {
		log = slog.Default()
	}

	return ConsoleModel{
		cons:      cons,
		events:    events,
		theme:     DefaultTheme,
		log:       log,
		vp:        viewport.New(),
		input:     input,
		focusList: true,
		status:    "Loading conversations…",
	}
}

// Init loads the conversation list and starts the event listener.
func (m ConsoleModel) Init() tea.Cmd {
	return tea.Batch(m.refreshList(), listenChannel(m.events))
}

// Update handles one message and returns the updated model.
func (m ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.SetWidth(max(msg.Width-listPaneWidth-3, 20))
		m.vp.SetHeight(max(msg.Height-3, 1))
		m.input.SetWidth(max(msg.Width-listPaneWidth-5, 10))
		m.refresh()
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case refreshedMsg:
		if msg.err != nil {
			m.status = "Could not load conversations."
			return m, nil
		}
		m.cons.SetConversations(msg.convs)
		m.status = ""
		if m.cursor >= len(msg.convs) {
			m.cursor = 0
		}
		return m, nil

	case activatedMsg:
		m.switching = false
		if msg.historyErr != nil {
			m.log.Error("chat history fetch failed",
				"conversation_id", msg.conv.ID, "error", msg.historyErr)
		}
		if err := m.cons.Activate(msg.conv, msg.history); err != nil {
			m.status = fmt.Sprintf("Could not open conversation %d.", msg.conv.ID)
			return m, nil
		}
		m.status = ""
		m.focusList = false
		m.input.Focus()
		m.refresh()
		return m, nil

	case consoleSendResultMsg:
		if draft, rolledBack := m.cons.FinishSend(msg.err); rolledBack {
			m.input.SetValue(draft)
			m.refresh()
		}
		return m, nil

	case channelEventMsg:
		if !msg.ok {
			m.status = "Connection lost."
			return m, nil
		}
		// Events arriving mid-switch belong to the room being left.
		if !m.switching && m.cons.HandleEvent(msg.ev).Mutated() {
			m.refresh()
		}
		return m, listenChannel(m.events)
	}

	if m.focusList || m.switching {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ConsoleModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.focusList = !m.focusList
		if m.focusList {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		return m, nil
	case "ctrl+r":
		return m, m.refreshList()
	}

	if m.focusList {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.cons.Conversations())-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			return m.activateSelected()
		case "q", "esc":
			return m, tea.Quit
		}
		return m, nil
	}

	if msg.String() == "enter" {
		return m.submit()
	}
	if msg.String() == "esc" {
		m.focusList = true
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the two panes side by side.
func (m ConsoleModel) View() tea.View {
	list := m.renderList()

	var footer string
	switch {
	case m.status != "":
		footer = m.theme.statusStyle().Render(m.status)
	case m.cons.Sending():
		footer = m.theme.hintStyle().Render("sending…")
	default:
		footer = m.input.View()
	}

	right := fmt.Sprintf("%s\n%s", m.vp.View(), footer)
	rows := joinPanes(list, right)

	header := m.theme.accentStyle().Render("Plush Haven operator console")
	hint := m.theme.hintStyle().Render("tab: switch pane · ctrl+r: reload · ctrl+c: quit")
	v := tea.NewView(fmt.Sprintf("%s\n%s\n%s", header, rows, hint))
	v.AltScreen = true
	return v
}

// Err returns the fatal error that ended the program, if any.
func (m ConsoleModel) Err() error { return m.fatal }

const listPaneWidth = 28

func (m ConsoleModel) renderList() string {
	convs := m.cons.Conversations()
	if len(convs) == 0 {
		return m.theme.hintStyle().Render("no conversations")
	}

	active, hasActive := m.cons.Active()
	var b strings.Builder
	for i, conv := range convs {
		label := conv.ParticipantLabel
		if label == "" {
			label = fmt.Sprintf("conversation %d", conv.ID)
		}
		line := truncatePane(label, listPaneWidth-4)
		switch {
		case hasActive && conv.ID == active.ID:
			line = "* " + m.theme.selfStyle().Render(line)
		case m.focusList && i == m.cursor:
			line = "> " + m.theme.accentStyle().Render(line)
		default:
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m ConsoleModel) activateSelected() (tea.Model, tea.Cmd) {
	convs := m.cons.Conversations()
	if m.cursor >= len(convs) || m.switching {
		return m, nil
	}
	conv := convs[m.cursor]
	m.switching = true
	m.status = "Opening…"
	cons := m.cons
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		history, err := cons.FetchHistory(ctx, conv.ID)
		return activatedMsg{conv: conv, history: history, historyErr: err}
	}
}

func (m ConsoleModel) submit() (tea.Model, tea.Cmd) {
	pending, err := m.cons.Submit(m.input.Value())
	switch {
	case errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrSendInFlight),
		errors.Is(err, chat.ErrNoConversation):
		return m, nil
	case err != nil:
		return m, nil
	}

	m.input.Reset()
	m.refresh()
	cons := m.cons
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return consoleSendResultMsg{err: cons.Send(ctx, pending)}
	}
}

func (m *ConsoleModel) refresh() {
	conv, ok := m.cons.Active()
	if !ok {
		m.vp.SetContent(m.theme.hintStyle().Render("Select a conversation."))
		return
	}
	m.vp.SetContent(RenderTranscript(m.theme, m.cons.Messages(), m.cons.SelfID(), conv.ParticipantLabel))
	m.vp.GotoBottom()
}

func (m ConsoleModel) refreshList() tea.Cmd {
	cons := m.cons
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		convs, err := cons.FetchConversations(ctx)
		return refreshedMsg{convs: convs, err: err}
	}
}

// joinPanes lays the list and chat panes out side by side.
func joinPanes(left, right string) string {
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")

	n := max(len(leftLines), len(rightLines))
	var b strings.Builder
	for i := 0; i < n; i++ {
		var l, r string
		if i < len(leftLines) {
			l = leftLines[i]
		}
		if i < len(rightLines) {
			r = rightLines[i]
		}
		fmt.Fprintf(&b, "%-*s │ %s\n", listPaneWidth, l, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncatePane(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 1 {
		return s
	}
	return s[:maxLen-1] + "…"
}
