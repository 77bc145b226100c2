package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/neilberkman/thinkchat/internal/core/models"
)

const sidebarWidth = 32

type sessionListItem struct {
	session models.ChatSession
	active  bool
}

func (i sessionListItem) FilterValue() string {
	return i.session.Title
}

func (i sessionListItem) Title() string {
	return i.session.Title
}

func (i sessionListItem) Description() string {
	n := len(i.session.Messages)
	unit := "messages"
	if n == 1 {
		unit = "message"
	}
	return fmt.Sprintf("%d %s | %s", n, unit, humanize.Time(i.session.Updated()))
}

// Custom delegate to mark the active session
type sessionDelegate struct {
	list.DefaultDelegate
}

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(sessionListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	width := uint(max(m.Width()-3, 1))
	title := truncate.StringWithTail(s.Title(), width, "…")
	desc := truncate.StringWithTail(s.Description(), width, "…")

	switch {
	case index == m.Index():
		title = selectedItemStyle.Render("> " + title)
		desc = selectedItemStyle.Faint(true).Render("  " + desc)
	case s.active:
		title = activeItemStyle.Render("* " + title)
		desc = itemStyle.Render(desc)
	default:
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func sessionItems(sessions []models.ChatSession, activeID string) []list.Item {
	items := make([]list.Item, len(sessions))
	for i, s := range sessions {
		items[i] = sessionListItem{session: s, active: s.ID == activeID}
	}
	return items
}

func createSessionList(width, height int) list.Model {
	delegate := sessionDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(nil, delegate, width, height)
	l.Title = ""
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)

	return l
}

// refreshList rebuilds the sidebar from the store, keeping the cursor on the
// same session when it still exists
func (m *Model) refreshList() tea.Cmd {
	var cursorID string
	if selected, ok := m.list.SelectedItem().(sessionListItem); ok {
		cursorID = selected.session.ID
	}
	activeID := m.store.ActiveID()
	if m.followActive || cursorID == "" {
		cursorID = activeID
	}
	m.followActive = false

	sessions := m.store.Sessions()
	cmd := m.list.SetItems(sessionItems(sessions, activeID))
	for i, s := range sessions {
		if s.ID == cursorID {
			m.list.Select(i)
			break
		}
	}
	return cmd
}

func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if selected, ok := m.list.SelectedItem().(sessionListItem); ok {
			if err := m.controller.Activate(m.ctx, selected.session.ID); err != nil {
				m.err = err
				return m, nil
			}
			m.setFocus(focusInput)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) viewSidebar() string {
	header := titleStyle.Render(fmt.Sprintf("Chats (%d)", m.store.Len()))
	style := sidebarStyle
	if m.focus == focusSidebar {
		style = sidebarFocusedStyle
	}
	return style.
		Width(sidebarWidth).
		Height(max(m.height-1, 1)).
		Render(header + "\n\n" + m.list.View())
}
