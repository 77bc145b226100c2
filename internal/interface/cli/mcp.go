package cli

import (
	"fmt"

	"github.com/neilberkman/thinkchat/cmd/thinkchat/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server over the chat history",
	Long: `Start an MCP (Model Context Protocol) server that lets other assistants
search and read your stored chat sessions. The tools are read-only.

Configure in Claude Desktop's config file (~/.config/claude/config.json):
  {
    "mcpServers": {
      "thinkchat": {
        "command": "thinkchat",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	version := rootCmd.Version
	if version == "" {
		version = "dev"
	}
	if err := mcp.StartServer(readSessions, version); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
