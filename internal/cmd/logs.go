package cmd

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/eegrec/internal/config"
	"github.com/Iron-Ham/eegrec/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View recorder logs",
	Long: `Display entries from the archive's eegrec.log.

Examples:
  eegrec logs                      # Show the last 50 entries
  eegrec logs -n 200               # Show the last 200 entries
  eegrec logs --level warn         # Show only warnings and errors
  eegrec logs --since 1h           # Show entries from the last hour
  eegrec logs --session Session_2  # Show one session's entries
  eegrec logs --grep "poll"        # Show entries whose message contains "poll"`,
	RunE: runLogs,
}

var (
	logsTail    int
	logsLevel   string
	logsSince   time.Duration
	logsSession string
	logsBoard   string
	logsGrep    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level: debug, info, warn, error")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "only entries newer than this duration (e.g. 30m, 2h)")
	logsCmd.Flags().StringVar(&logsSession, "session", "", "only entries for this session name")
	logsCmd.Flags().StringVar(&logsBoard, "board", "", "only entries for this board")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "only entries whose message contains this text")
}

var levelStyles = map[string]lipgloss.Style{
	logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logsLevel != "" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(logsLevel)) {
		return fmt.Errorf("invalid --level %q: valid levels are debug, info, warn, error", logsLevel)
	}

	path := filepath.Join(cfg.Record.ArchiveDir, logging.LogFileName)
	entries, err := logging.ReadLogFile(afero.NewOsFs(), path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	filter := logging.LogFilter{
		Level:           logsLevel,
		Session:         logsSession,
		Board:           logsBoard,
		MessageContains: logsGrep,
	}
	if logsSince > 0 {
		filter.Since = time.Now().Add(-logsSince)
	}
	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries.")
		return nil
	}

	styled := isTerminal(out)
	for _, e := range entries {
		line := logging.FormatEntry(e)
		if style, ok := levelStyles[e.Level]; ok && styled {
			line = style.Render(line)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
