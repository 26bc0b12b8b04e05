// Package tui is the terminal chat front end. It drives the same
// orchestrator as the web page for a single local session.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/stupiduntilnot/csast/internal/chat"
	"github.com/stupiduntilnot/csast/internal/session"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	headerHeight  = 1
	statusHeight  = 1
	inputHeight   = 1
	footerHeight  = 1
	borderHeight  = 2
	minHeight     = 3
	charLimit     = 4000

	Placeholder = "How can I help you?"
	BusyText    = "Thinking..."
)

// Chatter runs turns for a session. *chat.Orchestrator implements it.
type Chatter interface {
	Submit(ctx context.Context, st *session.State, input string) (string, error)
	Reset(st *session.State)
}

// replyMsg carries the outcome of one Submit back into the update loop.
type replyMsg struct {
	reply string
	err   error
}

type Model struct {
	chat    Chatter
	session *session.State
	title   string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap
	renderer *glamour.TermRenderer

	waiting bool
	pending string
	err     error
	width   int
	height  int
}

func New(c Chatter, st *session.State, title string) *Model {
	in := textinput.New()
	in.Placeholder = Placeholder
	in.CharLimit = charLimit
	in.Prompt = "> "
	in.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = statusStyle

	m := &Model{
		chat:     c,
		session:  st,
		title:    title,
		viewport: viewport.New(defaultWidth-2, defaultHeight-headerHeight-statusHeight-inputHeight-footerHeight-borderHeight),
		input:    in,
		spinner:  spin,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.renderer = newRenderer(m.viewport.Width - 2)
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			m.chat.Reset(m.session)
			m.err = nil
			m.pending = ""
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Send):
			return m.send()
		case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case replyMsg:
		m.waiting = false
		m.pending = ""
		switch {
		case msg.err == nil, errors.Is(msg.err, chat.ErrDiscarded), errors.Is(msg.err, chat.ErrEmptyInput):
			m.err = nil
		default:
			m.err = msg.err
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.waiting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send starts a turn in the background. Input is ignored while a turn is
// outstanding and when it is blank.
func (m *Model) send() (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.input.Reset()
	m.waiting = true
	m.pending = text
	m.err = nil
	m.refresh()

	c, st := m.chat, m.session
	submit := func() tea.Msg {
		reply, err := c.Submit(context.Background(), st, text)
		return replyMsg{reply: reply, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, submit)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	vw := max(width-2, 1)
	vh := max(height-headerHeight-statusHeight-inputHeight-footerHeight-borderHeight, minHeight)
	if vw != m.viewport.Width {
		m.renderer = newRenderer(max(vw-2, 10))
	}
	m.viewport.Width = vw
	m.viewport.Height = vh
	m.input.Width = max(width-4, 10)
	m.help.Width = width
	m.refresh()
}

// refresh rebuilds the transcript from the session and scrolls to the end.
func (m *Model) refresh() {
	msgs := m.session.Snapshot()
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(userLabelStyle.Render("You") + "\n" + msg.Content + "\n\n")
		case session.RoleAssistant:
			b.WriteString(assistantLabelStyle.Render(m.title) + "\n" + renderMarkdown(m.renderer, msg.Content) + "\n\n")
		}
	}
	if m.pending != "" && !endsWithUser(msgs, m.pending) {
		b.WriteString(userLabelStyle.Render("You") + "\n" + m.pending + "\n\n")
	}
	if b.Len() == 0 {
		b.WriteString(statusStyle.Render("Type a question below to start."))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func endsWithUser(msgs []session.Message, content string) bool {
	if len(msgs) == 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.Role == session.RoleUser && last.Content == content
}

func (m *Model) status() string {
	switch {
	case m.waiting:
		return m.spinner.View() + " " + statusStyle.Render(BusyText)
	case m.err != nil:
		return errorStyle.Render("Error: " + m.err.Error())
	default:
		return ""
	}
}

func (m *Model) View() string {
	sections := []string{
		titleStyle.Render(m.title),
		viewportStyle.Render(m.viewport.View()),
		m.status(),
		m.input.View(),
		m.help.View(m.keys),
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// Run blocks until the user quits.
func Run(ctx context.Context, c Chatter, st *session.State, title string) error {
	p := tea.NewProgram(New(c, st, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
