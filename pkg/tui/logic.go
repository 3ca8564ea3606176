package tui

import (
	"errors"
	"time"

	"walletchat/pkg/assistant"
	"walletchat/pkg/conversation"

	tea "github.com/charmbracelet/bubbletea"
)

func listenForConversation(sub conversation.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

func (m model) connectCmd() tea.Cmd {
	session := m.assistant.Session()
	ctx := m.ctx
	return func() tea.Msg {
		note, err := session.Connect(ctx)
		return connectResultMsg{note: note, err: err}
	}
}

func (m model) sendCmd(text string) tea.Cmd {
	a := m.assistant
	ctx := m.ctx
	return func() tea.Msg {
		_, err := a.Send(ctx, text)
		return sendResultMsg{text: text, err: err}
	}
}

// setStatus shows msg and schedules its removal. Only the latest status is
// cleared by its own tick.
func (m *model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.statusMessage = msg
	m.statusIsError = isErr
	seq := m.statusSeq
	return tea.Tick(m.statusTimeout, func(t time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

const busyStatus = "Another request is still in progress."

// sendFailure maps a send error to the status line. Cancelled cycles are
// silent. A busy rejection hands the text back to the input.
func (m *model) sendFailure(msg sendResultMsg) tea.Cmd {
	err := msg.err
	switch {
	case err == nil,
		errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, assistant.ErrCycleCancelled):
		return nil
	case errors.Is(err, assistant.ErrBusy):
		if m.input.Value() == "" {
			m.input.SetValue(msg.text)
		}
		return m.setStatus(busyStatus, true)
	case errors.Is(err, assistant.ErrWalletNotConnected):
		return m.setStatus(assistant.NotConnectedNotification().String(), true)
	default:
		return m.setStatus(err.Error(), true)
	}
}

func (m *model) layout() {
	const (
		headerHeight = 2
		promptHeight = 1
		statusHeight = 1
		footerHeight = 1
	)
	m.input.SetWidth(m.width - 2)
	inputHeight := m.input.Height() + 2

	h := m.height - headerHeight - promptHeight - inputHeight - statusHeight - footerHeight
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(renderTurns(m.turns, m.viewport.Width))
	m.viewport.GotoBottom()
}
