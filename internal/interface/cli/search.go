package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/thinkchat/internal/core/search"
	"github.com/spf13/cobra"
)

var (
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search chat sessions",
	Long: `Search through all stored chat messages.

Matching is a case-insensitive substring match. Results are grouped by
session and show matching message snippets.

Filters:
  role:user|model     only messages from one side
  after:<date>        only messages after a date (yesterday, last-week, 2024-11-01)
  before:<date>       only messages before a date

Examples:
  thinkchat search "error handling"
  thinkchat search kubernetes after:last-week
  thinkchat search role:model "func main" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of sessions to show")
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Join all args as query
	query := strings.Join(args, " ")

	sessions, err := readSessions(cmd.Context())
	if err != nil {
		return err
	}

	results, err := search.Search(sessions, query, 0)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	groups := search.GroupBySession(results)

	if len(groups) == 0 {
		fmt.Printf("No results found for: %s\n", query)
		return nil
	}

	fmt.Printf("Found %d session(s) with %d match(es) for: %s\n\n", len(groups), len(results), query)

	for i, g := range groups {
		if i >= searchLimit {
			fmt.Printf("\n... and %d more sessions (use --limit to see more)\n", len(groups)-searchLimit)
			break
		}

		fmt.Printf("=== Session %d ===\n", i+1)
		fmt.Printf("ID:      %s\n", g.SessionID)
		fmt.Printf("Title:   %s\n", g.SessionTitle)
		fmt.Printf("Latest:  %s\n", humanize.Time(g.LatestMatch))
		fmt.Printf("Matches: %d\n\n", len(g.Matches))

		// Show up to 3 matches per session
		matchLimit := 3
		if len(g.Matches) > matchLimit {
			fmt.Printf("Showing first %d of %d matches:\n", matchLimit, len(g.Matches))
		}
		for j, match := range g.Matches {
			if j >= matchLimit {
				break
			}
			fmt.Printf("  [%s] %s\n\n", match.Role, match.Snippet)
		}
	}

	return nil
}
