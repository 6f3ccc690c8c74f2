package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"github.com/plushhaven/chatkit/internal/chat"
)

const requestTimeout = 10 * time.Second

// Messages exchanged between async commands and the widget's Update loop.
// All session mutations happen in Update; commands only perform I/O and
// report back, which keeps the chat state machine on one logical thread.
type (
	// openedMsg carries the result of the open I/O: the resolved
	// conversation and its history snapshot.
	openedMsg struct {
		conv    chat.Conversation
		history []chat.Message
		err     error
	}
	// sendResultMsg reports the gateway half of a send cycle.
	sendResultMsg struct{ err error }
	// channelEventMsg carries one realtime event; ok=false means the
	// channel closed.
	channelEventMsg struct {
		ev chat.Event
		ok bool
	}
)

// WidgetModel is the customer chat widget: one conversation, an input line,
// and a transcript viewport.
type WidgetModel struct {
	sess   *chat.Session
	events <-chan chat.Event
	theme  Theme

	vp    viewport.Model
	input textinput.Model

	width  int
	height int
	opened bool
	status string
	fatal  error
}

// NewWidget builds the widget around an un-opened session. The realtime
// connection must already be acquired; events is its delivery channel.
func NewWidget(sess *chat.Session, events <-chan chat.Event) WidgetModel {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = 2000
	input.Focus()

	return WidgetModel{
		sess:   sess,
		events: events,
		theme:  DefaultTheme,
		vp:     viewport.New(),
		input:  input,
		status: "Connecting…",
	}
}

// Init opens the session and starts listening for channel events.
func (m WidgetModel) Init() tea.Cmd {
	return tea.Batch(m.openSession(), listenChannel(m.events))
}

// Update handles one message and returns the updated model.
func (m WidgetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.SetWidth(msg.Width)
		m.vp.SetHeight(max(msg.Height-3, 1))
		m.input.SetWidth(max(msg.Width-2, 10))
		m.refresh()
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case openedMsg:
		if msg.err != nil {
			var rerr *chat.ResolveError
			if errors.As(msg.err, &rerr) {
				// Chat entry point stays visible but non-functional;
				// nothing else in the application is affected.
				m.status = "Chat unavailable. Press r to retry."
				return m, nil
			}
			m.fatal = msg.err
			return m, tea.Quit
		}
		m.sess.ApplyOpen(msg.conv, msg.history)
		if err := m.sess.Join(); err != nil {
			m.status = "Chat unavailable. Press r to retry."
			return m, nil
		}
		m.opened = true
		m.status = ""
		m.refresh()
		return m, nil

	case sendResultMsg:
		if draft, rolledBack := m.sess.FinishSend(msg.err); rolledBack {
			// Failed send reverts silently to editable input text.
			m.input.SetValue(draft)
			m.refresh()
		}
		return m, nil

	case channelEventMsg:
		if !msg.ok {
			m.status = "Connection lost."
			return m, nil
		}
		if m.sess.HandleEvent(msg.ev).Mutated() {
			m.refresh()
		}
		return m, listenChannel(m.events)
	}

	if !m.opened {
		if key, isKey := msg.(tea.KeyPressMsg); isKey && key.String() == "r" {
			m.status = "Connecting…"
			return m, m.openSession()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript, the status line and the input.
func (m WidgetModel) View() tea.View {
	var footer string
	switch {
	case m.status != "":
		footer = m.theme.statusStyle().Render(m.status)
	case m.sess.Sending():
		footer = m.theme.hintStyle().Render("sending…")
	default:
		footer = m.input.View()
	}

	header := m.theme.accentStyle().Render("Plush Haven support")
	v := tea.NewView(fmt.Sprintf("%s\n%s\n%s", header, m.vp.View(), footer))
	v.AltScreen = true
	return v
}

// Err returns the fatal error that ended the program, if any.
func (m WidgetModel) Err() error { return m.fatal }

// submit runs the optimistic insert synchronously and hands the gateway
// call to a command.
func (m WidgetModel) submit() (tea.Model, tea.Cmd) {
	pending, err := m.sess.Submit(m.input.Value())
	switch {
	case errors.Is(err, chat.ErrEmptyContent):
		return m, nil
	case errors.Is(err, chat.ErrSendInFlight):
		return m, nil
	case errors.Is(err, chat.ErrNoConversation):
		m.status = "Chat unavailable. Press r to retry."
		return m, nil
	case err != nil:
		return m, nil
	}

	m.input.Reset()
	m.refresh()
	return m, sendMessage(m.sess, pending)
}

// refresh rebuilds the viewport content and pins it to the newest message.
func (m *WidgetModel) refresh() {
	conv, _ := m.sess.Conversation()
	m.vp.SetContent(RenderTranscript(m.theme, m.sess.Messages(), m.sess.SelfID(), conv.ParticipantLabel))
	m.vp.GotoBottom()
}

// openSession performs the open I/O off the loop; ApplyOpen and Join run
// back in Update when openedMsg lands.
func (m WidgetModel) openSession() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		conv, history, err := sess.Resolve(ctx)
		return openedMsg{conv: conv, history: history, err: err}
	}
}

func sendMessage(sess *chat.Session, pending chat.Message) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sendResultMsg{err: sess.Send(ctx, pending)}
	}
}

// listenChannel waits for the next realtime event. Re-issued after every
// receipt so exactly one reader drains the channel.
func listenChannel(events <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return channelEventMsg{ev: ev, ok: ok}
	}
}
