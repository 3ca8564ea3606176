package tui

import (
	"strings"

	"walletchat/pkg/models"

	"github.com/charmbracelet/lipgloss"
)

// bubbleMaxWidth is the widest a chat bubble may grow inside width columns.
func bubbleMaxWidth(width int) int {
	w := width * 3 / 4
	if w < 20 {
		w = 20
	}
	return w
}

func renderBubble(turn models.ChatTurn, width int) string {
	style := assistantBubbleStyle
	align := lipgloss.Left
	if turn.Role == models.RoleUser {
		style = userBubbleStyle
		align = lipgloss.Right
	}

	content := strings.TrimRight(turn.Content, "\n")
	maxContent := bubbleMaxWidth(width) - style.GetHorizontalFrameSize()
	if lipgloss.Width(content) > maxContent {
		style = style.Width(maxContent + style.GetHorizontalPadding())
	}
	return lipgloss.PlaceHorizontal(width, align, style.Render(content))
}

func renderTurns(turns []models.ChatTurn, width int) string {
	if len(turns) == 0 {
		return subtleStyle.Render("Ask about your balance or recent transactions.")
	}
	rendered := make([]string, 0, len(turns))
	for _, turn := range turns {
		rendered = append(rendered, renderBubble(turn, width))
	}
	return strings.Join(rendered, "\n\n")
}
