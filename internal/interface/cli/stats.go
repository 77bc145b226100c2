package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/thinkchat/internal/core/conversation"
	"github.com/neilberkman/thinkchat/internal/core/db"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chat history statistics",
	Long: `Display statistics about the stored chat history.

Shows session and message counts, image requests, date range, and storage info.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	sessions, err := readSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	st := conversation.Summarize(sessions)

	fmt.Println("Chat History Statistics")
	fmt.Println("=======================")
	fmt.Println()

	fmt.Printf("Total Sessions:    %d (%d empty)\n", st.TotalSessions, st.EmptySessions)
	fmt.Printf("Total Messages:    %d\n", st.TotalMessages)
	fmt.Printf("  From You:        %d\n", st.UserMessages)
	fmt.Printf("  From %-12s %d\n", cfgAssistantName()+":", st.ModelMessages)
	fmt.Printf("Image Requests:    %d\n", st.ImageRequests)
	fmt.Println()

	if st.TotalSessions > 0 {
		fmt.Printf("Oldest Session:    %s\n", st.OldestSession.Format("Jan 2, 2006 3:04 PM"))
		fmt.Printf("Latest Activity:   %s (%s)\n", st.NewestActivity.Format("Jan 2, 2006 3:04 PM"), humanize.Time(st.NewestActivity))
		fmt.Println()
	}

	if st.LongestSessionCount > 0 {
		fmt.Printf("Longest Session:\n")
		fmt.Printf("  ID:       %s\n", st.LongestSessionID)
		fmt.Printf("  Title:    %s\n", st.LongestSessionTitle)
		fmt.Printf("  Messages: %d\n", st.LongestSessionCount)
		fmt.Println()
	}

	if ephemeral {
		fmt.Println("Storage:           in-memory (--ephemeral)")
		return nil
	}

	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()

	if saved, err := database.UpdatedAt(cmd.Context(), cfg.StorageKey); err == nil {
		fmt.Printf("Last Saved:        %s\n", humanize.Time(saved))
	}

	fileInfo, err := os.Stat(dbPath)
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}

	fmt.Printf("Database Location: %s\n", dbPath)
	fmt.Printf("Database Size:     %s\n", humanize.Bytes(uint64(fileInfo.Size())))

	return nil
}
