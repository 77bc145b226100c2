package models

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSessionValidation(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tests := []struct {
		name    string
		session ChatSession
		wantErr bool
	}{
		{
			name:    "valid empty session",
			session: NewSession("abc-123", now),
			wantErr: false,
		},
		{
			name:    "missing session ID",
			session: ChatSession{Title: DefaultTitle},
			wantErr: true,
		},
		{
			name: "unknown role",
			session: ChatSession{
				ID:       "abc-123",
				Messages: []Message{{ID: "m1", Role: "assistant", Content: "hi"}},
			},
			wantErr: true,
		},
		{
			name: "streaming message not last",
			session: ChatSession{
				ID: "abc-123",
				Messages: []Message{
					{ID: "m1", Role: RoleModel, IsStreaming: true},
					{ID: "m2", Role: RoleUser, Content: "hello"},
				},
			},
			wantErr: true,
		},
		{
			name: "streaming user message",
			session: ChatSession{
				ID:       "abc-123",
				Messages: []Message{{ID: "m1", Role: RoleUser, IsStreaming: true}},
			},
			wantErr: true,
		},
		{
			name: "streaming tail",
			session: ChatSession{
				ID: "abc-123",
				Messages: []Message{
					{ID: "m1", Role: RoleUser, Content: "hello"},
					{ID: "m2", Role: RoleModel, IsStreaming: true},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("a", TitleMaxLen+12)
	got := DeriveTitle(long)
	if !strings.HasSuffix(got, TitleEllipsis) {
		t.Errorf("DeriveTitle(long) = %q, want ellipsis suffix", got)
	}
	if n := utf8.RuneCountInString(got); n != TitleMaxLen+len(TitleEllipsis) {
		t.Errorf("DeriveTitle(long) has %d runes, want %d", n, TitleMaxLen+len(TitleEllipsis))
	}

	if got := DeriveTitle("hello"); got != "hello" {
		t.Errorf("DeriveTitle(short) = %q, want verbatim", got)
	}

	exact := strings.Repeat("b", TitleMaxLen)
	if got := DeriveTitle(exact); got != exact {
		t.Errorf("DeriveTitle(exact bound) = %q, want verbatim", got)
	}

	// Multi-byte input is cut on rune boundaries
	wide := strings.Repeat("é", TitleMaxLen+1)
	got = DeriveTitle(wide)
	if !utf8.ValidString(got) {
		t.Errorf("DeriveTitle(wide) produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != TitleMaxLen+len(TitleEllipsis) {
		t.Errorf("DeriveTitle(wide) has %d runes", n)
	}
}

func TestWithMessage_SetsTitleOnFirstUserMessage(t *testing.T) {
	t0 := time.UnixMilli(1000)
	t1 := time.UnixMilli(2000)
	s := NewSession("s1", t0)

	s = s.WithMessage(NewMessage("m1", RoleUser, "hello", t1), t1)
	if s.Title != "hello" {
		t.Errorf("Title = %q, want hello", s.Title)
	}
	if s.UpdatedAt != 2000 {
		t.Errorf("UpdatedAt = %d, want 2000", s.UpdatedAt)
	}
	if s.CreatedAt != 1000 {
		t.Errorf("CreatedAt changed to %d", s.CreatedAt)
	}

	s = s.WithMessage(NewMessage("m2", RoleUser, "second", t1), t1)
	if s.Title != "hello" {
		t.Errorf("Title changed to %q after second message", s.Title)
	}
}

func TestWithMessage_DoesNotAliasSnapshot(t *testing.T) {
	now := time.UnixMilli(1000)
	base := NewSession("s1", now)
	base = base.WithMessage(NewMessage("m1", RoleUser, "one", now), now)

	a := base.WithMessage(NewMessage("m2", RoleModel, "a", now), now)
	b := base.WithMessage(NewMessage("m3", RoleModel, "b", now), now)

	if len(base.Messages) != 1 {
		t.Fatalf("base mutated: %d messages", len(base.Messages))
	}
	if a.Messages[1].ID != "m2" || b.Messages[1].ID != "m3" {
		t.Errorf("appends share storage: a=%s b=%s", a.Messages[1].ID, b.Messages[1].ID)
	}
}

func TestWithLastReplaced(t *testing.T) {
	now := time.UnixMilli(1000)
	later := time.UnixMilli(5000)
	s := NewSession("s1", now).
		WithMessage(NewMessage("u1", RoleUser, "hi", now), now)

	// Last message is a user message: no change
	unchanged := s.WithLastReplaced("nope", false, later)
	if unchanged.Messages[0].Content != "hi" || unchanged.UpdatedAt != s.UpdatedAt {
		t.Errorf("user message replaced: %+v", unchanged.Messages[0])
	}

	placeholder := NewMessage("m1", RoleModel, "", now)
	placeholder.IsStreaming = true
	s = s.WithMessage(placeholder, now)

	snapshot := s
	s = s.WithLastReplaced("partial", true, later)
	if snapshot.Messages[1].Content != "" {
		t.Errorf("snapshot mutated: %q", snapshot.Messages[1].Content)
	}
	if !s.Streaming() || s.Messages[1].Content != "partial" {
		t.Errorf("replace failed: %+v", s.Messages[1])
	}

	s = s.WithLastReplaced("done", false, later)
	if s.Streaming() {
		t.Error("message still streaming after settle")
	}
	if s.UpdatedAt != 5000 {
		t.Errorf("UpdatedAt = %d, want 5000", s.UpdatedAt)
	}
	if reply, ok := s.LastReply(); !ok || reply.Content != "done" {
		t.Errorf("LastReply() = %+v, %v", reply, ok)
	}
}

func TestSettled(t *testing.T) {
	now := time.UnixMilli(1000)
	pending := NewMessage("m2", RoleModel, "", now)
	pending.IsStreaming = true
	s := NewSession("s1", now).
		WithMessage(NewMessage("m1", RoleUser, "hi", now), now).
		WithMessage(pending, now)

	settled := s.Settled()
	if len(settled) != 1 || settled[0].ID != "m1" {
		t.Errorf("Settled() = %+v", settled)
	}
}
