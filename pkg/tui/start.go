package tui

import (
	"context"
	"time"

	"walletchat/pkg/assistant"
	"walletchat/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the chat UI until the user quits or ctx is done. history may be
// nil, which disables the balance graph.
func Start(ctx context.Context, a *assistant.Assistant, history *watcher.Watcher, statusTimeout time.Duration, version string) error {
	Version = version
	m := initialModel(ctx, a, history, statusTimeout)
	defer a.Conversation().Unsubscribe(m.sub)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	return err
}
