package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/thinkchat/internal/interface/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive chat",
	Long: `Launch the terminal chat UI. Sessions are listed on the left, the active
conversation on the right. Replies stream in as they are generated.

Start a message with /image to generate a picture instead of text.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	return runChat(ctx, a)
}

// runChat runs the chat UI over an opened app until the user quits
func runChat(ctx context.Context, a *app) error {
	model := tui.New(ctx, a.store, a.controller, cfgAssistantName())
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	// Settle a turn cut short by quitting before the final write
	a.controller.Shutdown()
	return nil
}
