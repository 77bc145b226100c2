package cli

import (
	"fmt"
	"os"

	"github.com/neilberkman/thinkchat/internal/core/store"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import sessions from a history export",
	Long: `Merge sessions from a JSON file into the local history.

The file may be the bare history array or a browser localStorage dump
containing the history key. Sessions whose ids already exist are skipped.

Examples:
  thinkchat import history.json
  thinkchat import localstorage-dump.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	sessions, err := store.DecodeExport(data, cfg.StorageKey)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	added := a.store.Import(sessions)
	fmt.Printf("Imported %d of %d session(s)", added, len(sessions))
	if skipped := len(sessions) - added; skipped > 0 {
		fmt.Printf(" (%d already present)", skipped)
	}
	fmt.Println()
	return nil
}
