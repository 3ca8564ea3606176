package tui

import (
	"strings"

	"walletchat/pkg/conversation"
	"walletchat/pkg/models"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case conversation.Event:
		// Keep listening on the same subscription.
		cmds = append(cmds, listenForConversation(m.sub))

		switch msg.Type {
		case conversation.EventTurnAppended:
			if turn, ok := msg.Data.(models.ChatTurn); ok {
				m.turns = append(m.turns, turn)
			}
		case conversation.EventReset:
			m.turns = nil
		}
		m.refreshViewport()

	case connectResultMsg:
		m.connecting = false
		cmds = append(cmds, m.setStatus(msg.note.String(), msg.err != nil))
		if msg.err == nil {
			m.input.Focus()
			m.layout()
		}

	case sendResultMsg:
		m.loading = false
		m.input.Focus()
		if cmd := m.sendFailure(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.statusMessage = ""
			m.statusIsError = false
		}

	case spinner.TickMsg:
		// The spinner only keeps ticking while something is in flight.
		if m.loading || m.connecting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if !m.connected() {
			return m.updateDisconnected(msg)
		}
		return m.updateConnected(msg)
	}

	// Cursor blink and other textarea internals.
	if _, isKey := msg.(tea.KeyMsg); !isKey {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateDisconnected(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter", "c":
		if m.connecting {
			return m, nil
		}
		m.connecting = true
		m.showGraph = false
		return m, tea.Batch(m.connectCmd(), m.spinner.Tick)
	}
	return m, nil
}

func (m model) updateConnected(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "ctrl+d":
		note := m.assistant.Session().Disconnect()
		if m.history != nil {
			m.history.Clear()
		}
		m.showGraph = false
		cmd := m.setStatus(note.String(), false)
		return m, cmd

	case "ctrl+y":
		addr := m.assistant.Session().Address()
		if err := clipboard.WriteAll(addr); err != nil {
			cmd := m.setStatus("Failed to copy to clipboard", true)
			return m, cmd
		}
		cmd := m.setStatus("Full address copied to clipboard!", false)
		return m, cmd

	case "ctrl+g":
		m.showGraph = !m.showGraph
		return m, nil

	case "esc":
		if m.showGraph {
			m.showGraph = false
		}
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "f1", "f2", "f3", "f4":
		if m.loading {
			return m, nil
		}
		idx := int(msg.String()[1] - '1')
		m.input.SetValue(SuggestedPrompts[idx])
		return m, nil

	case "enter":
		if m.loading {
			return m, nil
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		// A send from the API server may hold the assistant.
		if m.assistant.Busy() {
			cmd := m.setStatus(busyStatus, true)
			return m, cmd
		}
		m.input.Reset()
		m.input.Blur()
		m.loading = true
		m.showGraph = false
		return m, tea.Batch(m.sendCmd(text), m.spinner.Tick)
	}

	if m.loading {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}
