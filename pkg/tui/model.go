package tui

import (
	"context"
	"time"

	"walletchat/pkg/assistant"
	"walletchat/pkg/conversation"
	"walletchat/pkg/models"
	"walletchat/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

const defaultStatusTimeout = 3 * time.Second

// SuggestedPrompts fill the input when pressing f1 to f4.
var SuggestedPrompts = []string{
	"What is my balance?",
	"Analyze my portfolio",
	"Show me my holdings",
	"List my latest transactions",
}

// --- Messages ---

type clearStatusMsg struct{ seq int }

type connectResultMsg struct {
	note models.Notification
	err  error
}

type sendResultMsg struct {
	text string
	err  error
}

// --- Model ---

type model struct {
	ctx       context.Context
	assistant *assistant.Assistant
	history   *watcher.Watcher
	sub       conversation.Subscriber

	turns []models.ChatTurn

	width  int
	height int

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	loading    bool
	connecting bool
	showGraph  bool

	statusMessage string
	statusIsError bool
	statusSeq     int
	statusTimeout time.Duration
}

func initialModel(ctx context.Context, a *assistant.Assistant, history *watcher.Watcher, statusTimeout time.Duration) model {
	if statusTimeout <= 0 {
		statusTimeout = defaultStatusTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask about your wallet..."
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	return model{
		ctx:           ctx,
		assistant:     a,
		history:       history,
		sub:           a.Conversation().Subscribe(),
		turns:         a.Conversation().Turns(),
		viewport:      viewport.New(0, 0),
		input:         ta,
		spinner:       s,
		statusTimeout: statusTimeout,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForConversation(m.sub),
		m.spinner.Tick,
		textarea.Blink,
	)
}

func (m model) connected() bool {
	return m.assistant.Session().Connected()
}
