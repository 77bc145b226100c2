package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/neilberkman/thinkchat/internal/core/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	ephemeral   bool
	logLevel    string
	verbose     bool
	versionInfo string

	cfg     *config.Config
	logFile *os.File
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thinkchat",
	Short: "Terminal chat client for Gemini",
	Long: `thinkchat - chat with Gemini from your terminal

Conversations are kept locally and can be listed, searched and exported.
Start a message with /image to generate an image instead of text.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to TUI if no subcommand specified
		return tuiCmd.RunE(cmd, args)
	},
}

func init() {
	// Assigned here: setup refers back to rootCmd
	rootCmd.PersistentPreRunE = setup

	// Global flags
	defaultDB := "history.db"
	if dir, err := config.Dir(); err == nil {
		defaultDB = filepath.Join(dir, "history.db")
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Database path")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep history in memory only")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Also write logs to stderr")
}

// setup loads config and configures the global logger. The TUI owns the
// terminal, so logs go to a file unless --verbose is set.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	levelName := cfg.LogLevel
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	var writers []io.Writer
	if f, err := openLogFile(cfg.LogPath()); err == nil {
		logFile = f
		writers = append(writers, f)
	}
	if verbose && !ownsTerminal(cmd) {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	log.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return nil
}

// ownsTerminal reports whether cmd runs the full-screen chat UI
func ownsTerminal(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == tuiCmd || cmd == resumeCmd
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
