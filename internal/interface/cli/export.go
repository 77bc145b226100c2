package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
)

// exportTemplate renders a session as markdown. Triple braces keep message
// content unescaped.
const exportTemplate = `# {{{title}}}

**Session ID:** ` + "`{{id}}`" + `
**Created:** {{created}}
**Updated:** {{updated}}
**Messages:** {{count}}

---

{{#messages}}
**{{label}}** _{{time}}_

{{{content}}}

---

{{/messages}}`

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to markdown",
	Long: `Export a chat session to a markdown file.

By default exports to current directory as session-<id>.md.
Use --output to specify a custom path, or "-" for stdout.

Examples:
  thinkchat export 0ccfddc4-00e7-443a-bb82-58ede5936619
  thinkchat export 0ccfddc4 --output ~/exported-session.md
  thinkchat export 0ccfddc4 -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: session-<id>.md in current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	sessions, err := readSessions(cmd.Context())
	if err != nil {
		return err
	}
	sess, err := findSession(sessions, args[0])
	if err != nil {
		return err
	}

	content, err := renderMarkdown(sess)
	if err != nil {
		return err
	}

	if exportOutput == "-" {
		fmt.Print(content)
		return nil
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Determine output path
	outputPath := exportOutput
	if outputPath == "" {
		shortID := sess.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		outputPath = filepath.Join(cwd, fmt.Sprintf("session-%s.md", shortID))
	} else if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(cwd, outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Exported session to: %s\n", outputPath)
	return nil
}

// renderMarkdown renders a session with exportTemplate. Messages still
// streaming are left out.
func renderMarkdown(sess models.ChatSession) (string, error) {
	settled := sess.Settled()
	messages := make([]map[string]string, 0, len(settled))
	for _, m := range settled {
		messages = append(messages, map[string]string{
			"label":   roleLabel(m.Role),
			"time":    formatTimestampForExport(m.Time()),
			"content": m.Content,
		})
	}

	out, err := mustache.Render(exportTemplate, map[string]any{
		"title":    sess.Title,
		"id":       sess.ID,
		"created":  formatTimestampForExport(sess.Created()),
		"updated":  formatTimestampForExport(sess.Updated()),
		"count":    len(settled),
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render export: %w", err)
	}
	return out, nil
}

func roleLabel(r models.Role) string {
	if r == models.RoleModel {
		return strings.ToUpper(cfgAssistantName())
	}
	return "YOU"
}

func cfgAssistantName() string {
	if cfg == nil || cfg.AssistantName == "" {
		return "assistant"
	}
	return cfg.AssistantName
}

func formatTimestampForExport(t time.Time) string {
	return t.Local().Format("Jan 02, 2006 15:04:05")
}
