package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/neilberkman/thinkchat/internal/core/models"
)

// chromeHeight counts the rows around the viewport: header, notice, the
// bordered input and the help line
const chromeHeight = 1 + 1 + inputLines + 2 + 1

const inputLines = 3

func createViewport(width, height int) viewport.Model {
	return viewport.New(width, height)
}

// renderConversation draws every message of a session. The streaming tail,
// if any, is followed by the spinner frame.
func renderConversation(sess models.ChatSession, assistantName, spinnerFrame string, width int) string {
	if len(sess.Messages) == 0 {
		return emptyStyle.Render("Start the conversation. Prefix a message with /image to generate a picture.")
	}

	wrapWidth := max(width-2, 20)
	var b strings.Builder
	for i, msg := range sess.Messages {
		var style lipgloss.Style
		var label string

		switch msg.Role {
		case models.RoleUser:
			style = userStyle
			label = "YOU"
		default:
			style = assistantStyle
			label = strings.ToUpper(assistantName)
		}

		b.WriteString(fmt.Sprintf("%s %s\n",
			style.Render(label),
			timestampStyle.Render(msg.Time().Format("15:04"))))

		content := msg.Content
		if msg.IsStreaming {
			content = strings.TrimRight(content, "\n") + " " + spinnerFrame
		}
		b.WriteString(wordwrap.String(content, wrapWidth))
		if i < len(sess.Messages)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// syncViewport re-renders the active session, following the bottom when the
// view was already there
func (m *Model) syncViewport() {
	sess, ok := m.store.Active()
	if !ok {
		m.viewport.SetContent("")
		return
	}
	atBottom := m.viewport.AtBottom() || sess.ID != m.shownID
	m.shownID = sess.ID
	m.viewport.SetContent(renderConversation(sess, m.assistantName, m.spinner.View(), m.viewport.Width))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "enter":
		input := m.input.Value()
		if strings.TrimSpace(input) == "" {
			return m, nil
		}
		if m.controller.Generating() {
			m.status = "Still generating, press esc to stop"
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		return m, submitTurn(m.ctx, m.controller, input)

	case msg.String() == "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case msg.String() == "pgdown":
		m.viewport.HalfViewDown()
		return m, nil

	case msg.String() == "?" && m.input.Value() == "":
		m.mode = helpView
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) viewChat() string {
	width := m.chatWidth()

	title := models.DefaultTitle
	if sess, ok := m.store.Active(); ok {
		title = sess.Title
	}
	header := titleStyle.Render(title)

	// One notice line, banner first
	notice := ""
	switch banner := m.activeBanner(); {
	case banner != "":
		notice = bannerStyle.Width(width).Render(banner)
	case m.status != "":
		notice = statusStyle.Render(m.status)
	}

	style := inputStyle
	if m.focus == focusInput {
		style = inputFocusedStyle
	}

	return lipgloss.NewStyle().PaddingLeft(1).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		notice,
		style.Render(m.input.View()),
		m.help.View(m.keys),
	))
}
