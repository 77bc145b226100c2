package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	// DefaultTitle labels a session until its first user message arrives
	DefaultTitle = "New Chat"

	// TitleMaxLen is the number of runes kept when deriving a title
	TitleMaxLen = 30

	// TitleEllipsis marks a truncated title
	TitleEllipsis = "..."
)

// ChatSession is one conversation with the model.
//
// Sessions are values. Every With* method returns a new session with a fresh
// message slice so snapshots held elsewhere are never modified.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"` // epoch milliseconds
	UpdatedAt int64     `json:"updatedAt"` // epoch milliseconds
}

// NewSession creates an empty session with the placeholder title
func NewSession(id string, t time.Time) ChatSession {
	ms := t.UnixMilli()
	return ChatSession{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: ms,
		UpdatedAt: ms,
	}
}

// Validate checks the session and the streaming invariant of its messages
func (s ChatSession) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	for i, m := range s.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if m.IsStreaming && i != len(s.Messages)-1 {
			return fmt.Errorf("message %d: streaming message is not last", i)
		}
	}
	return nil
}

// Updated returns the last mutation time of the session
func (s ChatSession) Updated() time.Time {
	return time.UnixMilli(s.UpdatedAt)
}

// Created returns the creation time of the session
func (s ChatSession) Created() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// WithMessage appends m. The first user message also sets the title.
func (s ChatSession) WithMessage(m Message, t time.Time) ChatSession {
	if m.Role == RoleUser && len(s.Messages) == 0 {
		s.Title = DeriveTitle(m.Content)
	}
	msgs := make([]Message, 0, len(s.Messages)+1)
	msgs = append(msgs, s.Messages...)
	s.Messages = append(msgs, m)
	s.UpdatedAt = t.UnixMilli()
	return s
}

// WithLastReplaced substitutes content and streaming state of the last
// message. It leaves the session untouched unless that message is a model
// message.
func (s ChatSession) WithLastReplaced(content string, streaming bool, t time.Time) ChatSession {
	n := len(s.Messages)
	if n == 0 || s.Messages[n-1].Role != RoleModel {
		return s
	}
	msgs := slices.Clone(s.Messages)
	last := msgs[n-1]
	last.Content = content
	last.IsStreaming = streaming
	msgs[n-1] = last
	s.Messages = msgs
	s.UpdatedAt = t.UnixMilli()
	return s
}

// Last returns the final message, if any
func (s ChatSession) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Streaming reports whether the session has a message still generating
func (s ChatSession) Streaming() bool {
	last, ok := s.Last()
	return ok && last.IsStreaming
}

// Settled returns the messages that are no longer streaming, in order
func (s ChatSession) Settled() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if !m.IsStreaming {
			out = append(out, m)
		}
	}
	return out
}

// LastReply returns the most recent settled model message
func (s ChatSession) LastReply() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleModel && !m.IsStreaming {
			return m, true
		}
	}
	return Message{}, false
}

// DeriveTitle builds a session title from the first user message
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleMaxLen {
		return text
	}
	return string(runes[:TitleMaxLen]) + TitleEllipsis
}
