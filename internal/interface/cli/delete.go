package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Long: `Delete a chat session.

Deleting the only remaining session leaves a fresh empty one in its place.

Examples:
  thinkchat delete 0ccfddc4`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := findSession(a.store.Sessions(), args[0])
	if err != nil {
		return err
	}
	a.store.DeleteSession(sess.ID)

	fmt.Printf("Deleted session %s (%s)\n", sess.ID, sess.Title)
	return nil
}
