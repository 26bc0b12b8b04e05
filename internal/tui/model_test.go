package tui

import (
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stupiduntilnot/csast/internal/chat"
	"github.com/stupiduntilnot/csast/internal/dummy"
	"github.com/stupiduntilnot/csast/internal/session"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

func plain(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func newModel(t *testing.T, script string) (*Model, *session.State) {
	t.Helper()
	p, err := dummy.NewProvider(script)
	if err != nil {
		t.Fatal(err)
	}
	st := session.New()
	m := New(chat.New(chat.Config{Provider: p, Model: "test-model"}), st, "CSAST")
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, st
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// run executes cmd and any batched commands, returning the reply messages.
func run(t *testing.T, cmd tea.Cmd) []replyMsg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []replyMsg
		for _, c := range msg {
			out = append(out, run(t, c)...)
		}
		return out
	case replyMsg:
		return []replyMsg{msg}
	default:
		return nil
	}
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func TestSend_ShowsBusyThenReply(t *testing.T) {
	m, st := newModel(t, "msg:Try restarting the hub.")
	typeText(m, "device won't connect")

	cmd := press(m, tea.KeyEnter)
	if !m.waiting {
		t.Fatal("expected waiting state after send")
	}
	view := plain(m.View())
	if !strings.Contains(view, BusyText) {
		t.Errorf("expected busy indicator in view:\n%s", view)
	}
	if !strings.Contains(view, "device won't connect") {
		t.Errorf("expected pending question in view:\n%s", view)
	}
	if m.input.Value() != "" {
		t.Errorf("expected input cleared, got %q", m.input.Value())
	}

	replies := run(t, cmd)
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	m.Update(replies[0])

	if m.waiting {
		t.Fatal("expected idle after reply")
	}
	if st.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", st.Len())
	}
	view = plain(m.View())
	if !strings.Contains(view, "Try restarting the hub.") {
		t.Errorf("expected reply in view:\n%s", view)
	}
	if strings.Contains(view, BusyText) {
		t.Errorf("busy indicator should be gone:\n%s", view)
	}
}

func TestSend_BlankInputIgnored(t *testing.T) {
	m, st := newModel(t, "ok")
	typeText(m, "   ")
	if cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Fatal("expected no command for blank input")
	}
	if m.waiting || st.Len() != 0 {
		t.Fatal("blank input must not start a turn")
	}
}

func TestSend_IgnoredWhileWaiting(t *testing.T) {
	m, _ := newModel(t, "ok")
	typeText(m, "first")
	press(m, tea.KeyEnter)

	typeText(m, "second")
	if cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Fatal("expected second send to be ignored while waiting")
	}
	if m.pending != "first" {
		t.Errorf("unexpected pending question %q", m.pending)
	}
}

func TestReply_ErrorShownInline(t *testing.T) {
	m, st := newModel(t, "err:quota")
	typeText(m, "hi")
	for _, r := range run(t, press(m, tea.KeyEnter)) {
		m.Update(r)
	}
	view := plain(m.View())
	if !strings.Contains(view, "Error:") || !strings.Contains(view, "quota") {
		t.Errorf("expected inline error:\n%s", view)
	}
	if st.Len() != 1 {
		t.Errorf("expected only the user message, got %d", st.Len())
	}
}

func TestReset_ClearsTranscriptAndError(t *testing.T) {
	m, st := newModel(t, "err:quota")
	typeText(m, "hi")
	for _, r := range run(t, press(m, tea.KeyEnter)) {
		m.Update(r)
	}
	press(m, tea.KeyCtrlL)

	if st.Len() != 0 || st.HistoryText() != "" {
		t.Fatal("expected empty session after reset")
	}
	if m.err != nil {
		t.Errorf("expected error cleared, got %v", m.err)
	}
	if strings.Contains(plain(m.View()), "hi\n") {
		t.Errorf("transcript should be empty:\n%s", plain(m.View()))
	}
}

func TestReply_DiscardedIsSilent(t *testing.T) {
	m, _ := newModel(t, "ok")
	m.waiting = true
	m.Update(replyMsg{err: chat.ErrDiscarded})
	if m.err != nil || m.waiting {
		t.Fatalf("discarded reply should leave an idle clean model, err=%v", m.err)
	}
}

func TestView_ShowsPlaceholderAndTitle(t *testing.T) {
	m, _ := newModel(t, "ok")
	view := plain(m.View())
	for _, want := range []string{"CSAST", Placeholder, "ctrl+l"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t, "ok")
	cmd := press(m, tea.KeyCtrlC)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}
