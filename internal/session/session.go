// Package session holds the chat transcript of one UI session.
package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ErrBusy is returned by Begin while a turn is already outstanding.
var ErrBusy = errors.New("session is waiting for a model reply")

// State is the transcript of a single session. historyText is always the
// question/reply projection of messages; Reset clears both under one lock.
// Safe for concurrent use.
type State struct {
	id string

	mu          sync.RWMutex
	messages    []Message
	historyText strings.Builder
	busy        bool
	epoch       uint64
}

// New creates an empty State with a UUIDv7 identifier.
func New() *State {
	return &State{id: uuid.Must(uuid.NewV7()).String()}
}

func (s *State) ID() string {
	return s.id
}

// Append adds a message. An assistant message also adds a question/reply
// pair to the history text, using the most recent user message as the
// question.
func (s *State) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(role, content)
}

// AppendAt appends like Append but only if the transcript has not been reset
// since epoch was observed. It reports whether the message was kept.
func (s *State) AppendAt(epoch uint64, role Role, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.appendLocked(role, content)
	return true
}

func (s *State) appendLocked(role Role, content string) {
	if role == RoleAssistant {
		fmt.Fprintf(&s.historyText, "\ncustomer question: %s\nreply: %s", s.lastUserLocked(), content)
	}
	s.messages = append(s.messages, Message{Role: role, Content: content})
}

func (s *State) lastUserLocked() string {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleUser {
			return s.messages[i].Content
		}
	}
	return ""
}

// Reset clears the transcript and the history text together.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.historyText.Reset()
	s.epoch++
}

// Snapshot returns a copy of the transcript in arrival order.
func (s *State) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// HistoryText returns the accumulated question/reply text.
func (s *State) HistoryText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyText.String()
}

// Len is the number of transcript messages.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Begin marks the session as awaiting a model reply and returns the current
// epoch. It fails with ErrBusy if a turn is already outstanding.
func (s *State) Begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0, ErrBusy
	}
	s.busy = true
	return s.epoch, nil
}

// Finish returns the session to idle.
func (s *State) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// Busy reports whether a turn is outstanding.
func (s *State) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}
