package tui

import (
	"fmt"
	"strings"

	"walletchat/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) View() string {
	if !m.connected() {
		return m.viewDisconnected()
	}
	if m.showGraph {
		return m.viewBalanceGraph()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		m.viewport.View(),
		m.viewPrompts(),
		m.viewInput(),
		m.viewStatus(),
		subtleStyle.Render("enter: send • alt+enter/ctrl+j: newline • f1-f4: prompts • ctrl+y: copy address • ctrl+g: balance graph • ctrl+c: quit"),
	)
}

func (m model) viewDisconnected() string {
	action := subtleStyle.Render("enter/c: Connect Wallet • q: quit")
	if m.connecting {
		action = fmt.Sprintf("%s Waiting for wallet approval...", m.spinner.View())
	}

	card := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Wallet Chat Assistant"),
		"",
		"Connect your wallet to ask about your",
		"portfolio balance and recent transactions.",
		"",
		action,
	))

	body := lipgloss.JoinVertical(lipgloss.Center, card, "", m.viewStatus())
	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m model) viewHeader() string {
	addr := m.assistant.Session().Address()
	right := subtleStyle.Render(fmt.Sprintf("%s - Disconnect (ctrl+d)", utils.ShortAddress(addr)))
	left := titleStyle.Render("Wallet Chat")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), right) + "\n"
}

func (m model) viewPrompts() string {
	style := promptStyle
	if m.loading {
		style = promptDisabledStyle
	}
	items := make([]string, 0, len(SuggestedPrompts))
	for i, p := range SuggestedPrompts {
		items = append(items, style.Render(fmt.Sprintf("f%d %s", i+1, p)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, items...)
}

func (m model) viewInput() string {
	if m.loading {
		return boxStyle.Render(fmt.Sprintf("%s Thinking...", m.spinner.View()))
	}
	return boxStyle.Render(m.input.View())
}

func (m model) viewStatus() string {
	if m.statusMessage == "" {
		return ""
	}
	msg := m.statusMessage
	if m.width > 0 {
		msg = utils.TruncateString(msg, m.width)
	}
	if m.statusIsError {
		return errStyle.Render(msg)
	}
	return infoStyle.Render(msg)
}

func (m model) viewBalanceGraph() string {
	header := titleStyle.Render("Portfolio History")

	var values []float64
	if m.history != nil {
		values = m.history.Values(m.assistant.Session().Address())
	}

	var graph, stats string
	if len(values) > 0 {
		lo, hi := values[0], values[0]
		for _, v := range values {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		stats = fmt.Sprintf("Latest: $%s • Low: $%s • High: $%s • Samples: %d",
			utils.FormatFloat(values[len(values)-1], 2),
			utils.FormatFloat(lo, 2),
			utils.FormatFloat(hi, 2),
			len(values))
	}
	if len(values) > 1 {
		width := m.width - 10
		if width < 10 {
			width = 10
		}
		height := m.height - 12
		if height < 5 {
			height = 5
		}
		graph = asciigraph.Plot(values,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption("Portfolio Value History (USD)"),
		)
	} else {
		graph = "Not enough data to draw graph. Ask for your balance a few times."
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", stats, "\n", graph))
	footer := subtleStyle.Render("ctrl+g/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}
