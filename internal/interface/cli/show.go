package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

var showWidth int

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session",
	Long: `Print every message of a session.

The id may be a unique prefix of at least four characters.

Examples:
  thinkchat show 0ccfddc4
  thinkchat show 0ccfddc4 --width 100`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showWidth, "width", 80, "Wrap messages at this width")
}

func runShow(cmd *cobra.Command, args []string) error {
	sessions, err := readSessions(cmd.Context())
	if err != nil {
		return err
	}
	sess, err := findSession(sessions, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", sess.Title)
	fmt.Printf("ID: %s | %d messages | updated %s\n", sess.ID, len(sess.Messages), humanize.Time(sess.Updated()))
	fmt.Println(strings.Repeat("─", min(showWidth, 60)))
	fmt.Println()

	for _, m := range sess.Messages {
		header := roleLabel(m.Role)
		if m.IsStreaming {
			header += " (incomplete)"
		}
		fmt.Printf("%s · %s\n", header, humanize.Time(m.Time()))
		fmt.Println(wordwrap.String(m.Content, showWidth))
		fmt.Println()
	}
	return nil
}
