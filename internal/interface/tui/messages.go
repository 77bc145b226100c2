package tui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/thinkchat/internal/core/conversation"
	"github.com/neilberkman/thinkchat/internal/core/store"
)

// bannerTimeout is how long a failure banner stays up
const bannerTimeout = 6 * time.Second

// Messages
type storeEventMsg store.Event

type storeClosedMsg struct{}

type turnDoneMsg struct {
	result conversation.Result
	err    error
}

type bannerTimeoutMsg struct {
	sessionID string
}

type copiedMsg struct {
	err error
}

// Commands
func waitForEvent(events <-chan store.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return storeClosedMsg{}
		}
		return storeEventMsg(ev)
	}
}

func submitTurn(ctx context.Context, c *conversation.Controller, input string) tea.Cmd {
	return func() tea.Msg {
		res, err := c.Submit(ctx, input)
		return turnDoneMsg{result: res, err: err}
	}
}

func expireBanner(sessionID string) tea.Cmd {
	return tea.Tick(bannerTimeout, func(time.Time) tea.Msg {
		return bannerTimeoutMsg{sessionID: sessionID}
	})
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}
