package cli

import (
	"fmt"
	"strings"

	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/search"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id-or-query>",
	Short: "Find a chat session and reopen it",
	Long: `Find a session and open it in the chat UI.

The argument is tried as a session id or id prefix first. Otherwise it is
searched for like 'thinkchat search' and the session with the most recent
match is opened.

Examples:
  thinkchat resume 3f2a9c
  thinkchat resume "kubernetes ingress"
  thinkchat resume goroutines role:model --auto`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResume,
}

var resumeAuto bool

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().BoolVar(&resumeAuto, "auto", false, "Auto-select best match without prompt")
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	sessions := a.store.Sessions()
	target, err := resolveResume(sessions, query)
	if err != nil {
		return err
	}
	if target == "" {
		fmt.Println("No matching sessions found.")
		return nil
	}

	if err := a.controller.Activate(ctx, target); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return runChat(ctx, a)
}

// resolveResume picks the session to reopen. An empty id means nothing
// matched or the user cancelled.
func resolveResume(sessions []models.ChatSession, query string) (string, error) {
	if !strings.ContainsAny(query, " :") {
		if sess, err := findSession(sessions, query); err == nil {
			return sess.ID, nil
		}
	}

	results, err := search.Search(sessions, query, 0)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	groups := search.GroupBySession(results)
	if len(groups) == 0 {
		return "", nil
	}
	if resumeAuto || len(groups) == 1 {
		return groups[0].SessionID, nil
	}

	displayCount := min(len(groups), 5)
	fmt.Printf("Found %d session(s):\n\n", len(groups))
	for i := 0; i < displayCount; i++ {
		g := groups[i]
		fmt.Printf("%d. %s  %s\n", i+1, g.SessionID, g.SessionTitle)
		fmt.Printf("   %s\n\n", strings.ReplaceAll(g.Matches[0].Snippet, "\n", " "))
	}

	var selection int
	fmt.Printf("Select session to resume (1-%d, 0 to cancel): ", displayCount)
	if _, err := fmt.Scanf("%d", &selection); err != nil || selection < 1 || selection > displayCount {
		fmt.Println("Cancelled.")
		return "", nil
	}
	return groups[selection-1].SessionID, nil
}
