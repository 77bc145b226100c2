package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/neilberkman/thinkchat/internal/core/conversation"
	"github.com/neilberkman/thinkchat/internal/core/store"
)

type viewMode int

const (
	chatView viewMode = iota
	helpView
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

type Model struct {
	ctx           context.Context
	store         *store.Store
	controller    *conversation.Controller
	assistantName string

	events      <-chan store.Event
	unsubscribe func()

	mode     viewMode
	focus    focusArea
	list     list.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	width    int
	height   int
	status   string
	err      error

	// shownID is the session currently rendered in the viewport
	shownID  string
	spinning bool
	// followActive moves the sidebar cursor to the active session on the
	// next refresh
	followActive bool
}

// New builds the chat UI over a loaded store. The model subscribes to store
// events immediately; call Close once the program exits.
func New(ctx context.Context, st *store.Store, c *conversation.Controller, assistantName string) Model {
	events, unsubscribe := st.Subscribe()

	input := textarea.New()
	input.Placeholder = "Message " + assistantName + "... (/image <prompt> for pictures)"
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(inputLines)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	s := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:           ctx,
		store:         st,
		controller:    c,
		assistantName: assistantName,
		events:        events,
		unsubscribe:   unsubscribe,
		mode:          chatView,
		focus:         focusInput,
		list:          createSessionList(sidebarWidth, 10),
		viewport:      createViewport(40, 10),
		input:         input,
		spinner:       s,
		help:          help.New(),
		keys:          defaultKeyMap(),
		followActive:  true,
	}
	m.refreshList()
	m.syncViewport()
	return m
}

// Close releases the store subscription
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), textarea.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case storeEventMsg:
		if msg.Kind != store.EventUpdated {
			m.followActive = true
		}
		cmd := m.refreshList()
		m.syncViewport()
		return m, tea.Batch(cmd, m.startSpinner(), waitForEvent(m.events))

	case storeClosedMsg:
		return m, nil

	case turnDoneMsg:
		m.syncViewport()
		switch {
		case msg.err != nil:
			m.status = turnErrorStatus(msg.err)
			return m, nil
		case msg.result.Cancelled():
			m.status = "Stopped"
			return m, nil
		case msg.result.Failed():
			return m, expireBanner(msg.result.SessionID)
		}
		return m, nil

	case bannerTimeoutMsg:
		m.controller.DismissBanner(msg.sessionID)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Copied last reply to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.controller.Generating() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.syncViewport()
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.controller.Cancel()
		return m, tea.Quit
	}

	if m.mode == helpView {
		return m.updateHelp(msg)
	}

	m.err = nil

	switch msg.String() {
	case "ctrl+n":
		m.controller.NewSession(m.ctx)
		m.followActive = true
		m.setFocus(focusInput)
		return m, nil

	case "ctrl+d":
		target := m.store.ActiveID()
		if m.focus == focusSidebar {
			if selected, ok := m.list.SelectedItem().(sessionListItem); ok {
				target = selected.session.ID
			}
		}
		if target != "" {
			m.controller.DeleteSession(m.ctx, target)
			m.followActive = true
		}
		return m, nil

	case "tab":
		if m.focus == focusInput {
			m.setFocus(focusSidebar)
		} else {
			m.setFocus(focusInput)
		}
		return m, nil

	case "esc":
		if m.controller.Cancel() {
			return m, nil
		}
		if m.focus == focusSidebar {
			m.setFocus(focusInput)
		}
		return m, nil

	case "ctrl+y":
		sess, ok := m.store.Active()
		if !ok {
			return m, nil
		}
		reply, ok := sess.LastReply()
		if !ok {
			m.status = "Nothing to copy yet"
			return m, nil
		}
		return m, copyToClipboard(reply.Content)
	}

	if m.focus == focusSidebar {
		if msg.String() == "?" {
			m.mode = helpView
			return m, nil
		}
		return m.updateSidebar(msg)
	}
	return m.updateInput(msg)
}

// startSpinner begins ticking while a turn runs
func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.controller.Generating() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) layout() {
	cw := m.chatWidth()
	m.viewport.Width = cw
	m.viewport.Height = max(m.height-chromeHeight, 3)
	m.input.SetWidth(max(cw-2, 10))
	m.list.SetSize(sidebarWidth, max(m.height-3, 1))
	m.help.Width = cw
}

func (m Model) chatWidth() int {
	return max(m.width-sidebarWidth-3, 20)
}

func (m Model) activeBanner() string {
	return m.controller.Banner(m.store.ActiveID())
}

func turnErrorStatus(err error) string {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		return ""
	case errors.Is(err, conversation.ErrTurnActive):
		return "Still generating, press esc to stop"
	default:
		return "Error: " + err.Error()
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.mode == helpView {
		return m.viewHelp()
	}

	view := lipgloss.JoinHorizontal(lipgloss.Top, m.viewSidebar(), m.viewChat())
	if m.err != nil {
		view += "\n" + bannerStyle.Render("Error: "+m.err.Error())
	}
	return view
}
