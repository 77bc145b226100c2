package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "?":
		m.mode = chatView
		return m, nil
	}

	return m, nil
}

func (m Model) viewHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(strings.ToUpper(m.assistantName)+" - Help") + "\n\n")
	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()) + "\n\n")
	b.WriteString(`MESSAGES
  Anything you type is sent to the model and the reply streams in.
  /image <prompt>   Generate a picture instead of a text reply.

Chats are saved automatically and restored on the next start.
Deleting the last chat starts a fresh one.`)
	b.WriteString("\n\n" + helpStyle.Render("Press ?, q or esc to return"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
