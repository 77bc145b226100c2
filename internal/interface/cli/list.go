package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/search"
	"github.com/spf13/cobra"
)

var (
	listLimit int
	listSince string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Long: `List stored chat sessions in the order the sidebar shows them
(newest first).

Shows titles, message counts, and timestamps.

Examples:
  thinkchat list
  thinkchat list --limit 10
  thinkchat list --since yesterday
  thinkchat list --since 2024-11-01`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to display")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only sessions updated after this date (natural language or YYYY-MM-DD)")
}

func runList(cmd *cobra.Command, args []string) error {
	sessions, err := readSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if listSince != "" {
		since, ok := search.ParseDate(listSince, time.Now())
		if !ok {
			return fmt.Errorf("could not parse --since %q", listSince)
		}
		sessions = updatedAfter(sessions, since)
	}

	// Apply limit (interface concern - pagination)
	if listLimit > 0 && len(sessions) > listLimit {
		sessions = sessions[:listLimit]
	}

	if len(sessions) == 0 {
		if listSince != "" {
			fmt.Printf("No sessions updated since %s\n", listSince)
		} else {
			fmt.Println("No sessions found. Run 'thinkchat' to start chatting.")
		}
		return nil
	}

	fmt.Printf("Showing %d session(s)\n\n", len(sessions))

	for i, s := range sessions {
		fmt.Printf("[%d] %s\n", i+1, s.ID)
		fmt.Printf("    Title: %s\n", truncate(s.Title, 80))
		fmt.Printf("    Messages: %d\n", len(s.Messages))
		fmt.Printf("    Updated: %s\n", humanize.Time(s.Updated()))
		fmt.Printf("    Created: %s\n", humanize.Time(s.Created()))
		fmt.Println()
	}

	return nil
}

func updatedAfter(sessions []models.ChatSession, since time.Time) []models.ChatSession {
	var out []models.ChatSession
	for _, s := range sessions {
		if s.Updated().After(since) {
			out = append(out, s)
		}
	}
	return out
}

// truncate flattens whitespace and cuts text to maxLen runes at a word
// boundary when one is close
func truncate(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	truncated := string(runes[:maxLen])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > len(truncated)-20 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}
