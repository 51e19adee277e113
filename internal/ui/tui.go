package ui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxTranscript bounds the rendered history.
const maxTranscript = 200

// TUIChat provides the interactive chat using bubbletea.
type TUIChat struct {
	cfg Config
	ask AskFunc
}

// NewTUIChat creates a TUI chat.
func NewTUIChat(cfg Config, ask AskFunc) *TUIChat {
	return &TUIChat{cfg: cfg, ask: ask}
}

// Run implements Chat.
func (c *TUIChat) Run(ctx context.Context) error {
	styles := DefaultStyles()
	if c.cfg.NoColor || DetectNoColor() {
		styles = NoColorStyles()
	}
	model := newChatModel(ctx, c.ask, c.cfg.Title, styles)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := c.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	if c.cfg.Input != nil {
		opts = append(opts, tea.WithInput(c.cfg.Input))
	}

	_, err := tea.NewProgram(model, opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Message types for bubbletea
type replyMsg struct {
	question string
	reply    Reply
	err      error
}

// chatModel is the bubbletea model for the question loop.
type chatModel struct {
	ctx        context.Context
	ask        AskFunc
	title      string
	styles     Styles
	input      textinput.Model
	spinner    spinner.Model
	transcript []string
	waiting    bool
	width      int
	quitting   bool
}

func newChatModel(ctx context.Context, ask AskFunc, title string, styles Styles) *chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about the document"
	ti.Prompt = styles.Prompt.Render("> ")
	ti.CharLimit = 1000
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &chatModel{
		ctx:     ctx,
		ask:     ask,
		title:   title,
		styles:  styles,
		input:   ti,
		spinner: s,
		width:   80,
	}
}

// Init implements tea.Model.
func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.ask(m.ctx, question)
		return replyMsg{question: question, reply: reply, err: err}
	}
}

// Update implements tea.Model.
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			if isQuit(question) {
				m.quitting = true
				return m, tea.Quit
			}
			m.input.Reset()
			m.waiting = true
			return m, tea.Batch(m.spinner.Tick, m.askCmd(question))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case replyMsg:
		m.waiting = false
		entry := m.styles.Question.Render("> "+msg.question) + "\n"
		if msg.err != nil {
			entry += FormatError(m.styles, msg.err)
		} else {
			entry += FormatReply(m.styles, msg.reply, m.width-20)
		}
		m.transcript = append(m.transcript, entry)
		if len(m.transcript) > maxTranscript {
			m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *chatModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	title := "claridoc"
	if m.title != "" {
		title = fmt.Sprintf("claridoc • %s", m.title)
	}
	sb.WriteString(m.styles.Header.Render(title))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Border.Render(strings.Repeat("─", max(m.width-2, 10))))
	sb.WriteString("\n")

	for _, entry := range m.transcript {
		sb.WriteString(entry)
		sb.WriteString("\n")
	}

	if m.waiting {
		sb.WriteString(m.spinner.View() + " " + m.styles.Dim.Render("Thinking..."))
	} else {
		sb.WriteString(m.input.View())
	}
	sb.WriteString("\n")
	sb.WriteString(m.styles.Dim.Render("enter to ask • esc to quit"))
	return sb.String()
}

var _ Chat = (*TUIChat)(nil)
