package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/thinkchat/internal/core/conversation"
	"github.com/neilberkman/thinkchat/internal/core/llm"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/store"
)

func newTestModel(t *testing.T) (Model, *store.Store, *conversation.Controller) {
	t.Helper()
	st := store.New(store.NewMemoryBackend())
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// No chat starter: text turns fail, image turns use the url backend
	gw := llm.NewGemini(nil, llm.NewURLImageBackend(llm.DefaultImageURLBase), "")
	c := conversation.New(st, gw)

	m := New(context.Background(), st, c, "THINK")
	t.Cleanup(m.Close)
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40}), st, c
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// send presses enter and runs the resulting turn to completion
func send(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	done, ok := cmd().(turnDoneMsg)
	if !ok {
		t.Fatal("enter did not submit a turn")
	}
	next, cmd = m.Update(done)
	return next.(Model), cmd
}

func TestImageTurn(t *testing.T) {
	m, st, _ := newTestModel(t)

	m = typeText(t, m, "/image a red cube")
	m, _ = send(t, m)

	if got := m.input.Value(); got != "" {
		t.Errorf("input = %q after send, want empty", got)
	}
	sess, _ := st.Active()
	if len(sess.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(sess.Messages))
	}
	want := "![Generated Image](https://image.pollinations.ai/prompt/a%20red%20cube"
	if !strings.HasPrefix(sess.Messages[1].Content, want) {
		t.Errorf("reply = %q", sess.Messages[1].Content)
	}
	if sess.Title != "/image a red cube" {
		t.Errorf("title = %q", sess.Title)
	}
	if !strings.Contains(m.View(), "THINK") {
		t.Error("view does not label the model reply")
	}
}

func TestFailedTurnBanner(t *testing.T) {
	m, st, c := newTestModel(t)

	m = typeText(t, m, "hello")
	m, cmd := send(t, m)

	if cmd == nil {
		t.Error("failed turn did not schedule the banner timeout")
	}
	if got := m.activeBanner(); got != conversation.MsgBanner {
		t.Errorf("banner = %q", got)
	}
	sess, _ := st.Active()
	if got := sess.Messages[1].Content; got != conversation.MsgApology {
		t.Errorf("reply = %q", got)
	}

	update(t, m, bannerTimeoutMsg{sessionID: sess.ID})
	if c.Banner(sess.ID) != "" {
		t.Error("banner survived its timeout")
	}
}

func TestBlankInputIgnored(t *testing.T) {
	m, st, _ := newTestModel(t)

	m = typeText(t, m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input produced a command")
	}
	if sess, _ := st.Active(); len(sess.Messages) != 0 {
		t.Errorf("blank input added %d messages", len(sess.Messages))
	}
}

func TestNewAndDeleteChat(t *testing.T) {
	m, st, _ := newTestModel(t)
	first := st.ActiveID()

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if st.Len() != 2 {
		t.Fatalf("Len() = %d after ctrl+n, want 2", st.Len())
	}
	if st.ActiveID() == first {
		t.Error("new chat was not activated")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if st.Len() != 1 || st.ActiveID() != first {
		t.Errorf("after delete: Len() = %d, active = %q", st.Len(), st.ActiveID())
	}

	// Deleting the last chat leaves a fresh one
	update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if st.Len() != 1 || st.ActiveID() == first {
		t.Errorf("after deleting last: Len() = %d, active = %q", st.Len(), st.ActiveID())
	}
}

func TestSidebarSelect(t *testing.T) {
	m, st, _ := newTestModel(t)
	first := st.ActiveID()
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	m = update(t, m, storeEventMsg{Kind: store.EventCreated})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusSidebar {
		t.Fatal("tab did not focus the sidebar")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if st.ActiveID() != first {
		t.Errorf("active = %q, want %q", st.ActiveID(), first)
	}
	if m.focus != focusInput {
		t.Error("opening a chat did not return focus to the input")
	}
}

func TestHelpToggle(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if m.mode != helpView {
		t.Fatal("? on empty input did not open help")
	}
	if !strings.Contains(m.View(), "/image") {
		t.Error("help does not mention /image")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != chatView {
		t.Error("esc did not close help")
	}

	// With text in the input ? is just a character
	m = typeText(t, m, "why")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if m.mode != chatView || m.input.Value() != "why?" {
		t.Errorf("mode = %v, input = %q", m.mode, m.input.Value())
	}
}

func TestRenderConversation(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)
	sess := models.NewSession("s1", t0)
	if got := renderConversation(sess, "THINK", "*", 80); !strings.Contains(got, "/image") {
		t.Errorf("empty session = %q", got)
	}

	streaming := models.NewMessage("m2", models.RoleModel, "Thinking about", t0)
	streaming.IsStreaming = true
	sess = sess.
		WithMessage(models.NewMessage("m1", models.RoleUser, "hi", t0), t0).
		WithMessage(streaming, t0)

	got := renderConversation(sess, "think", "*", 80)
	for _, want := range []string{"YOU", "THINK", "09:30", "hi", "Thinking about *"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered conversation missing %q:\n%s", want, got)
		}
	}
}

func TestSessionListItem(t *testing.T) {
	t0 := time.Now().Add(-2 * time.Hour)
	sess := models.NewSession("s1", t0).
		WithMessage(models.NewMessage("m1", models.RoleUser, "hi", t0), t0)

	item := sessionListItem{session: sess}
	if got := item.Description(); got != "1 message | 2 hours ago" {
		t.Errorf("Description() = %q", got)
	}
	if item.Title() != "hi" {
		t.Errorf("Title() = %q", item.Title())
	}
}
