package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/eegrec/internal/config"
	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/session"
	"github.com/Iron-Ham/eegrec/internal/util"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded sessions",
	Long:  `Inspect the sessions in the archive.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Long: `List every session in the archive, oldest first.

--match takes a glob. Patterns containing a slash match "<date>/<name>",
others match the session name:

  eegrec sessions list --match 'Session_*_SYNTH'
  eegrec sessions list --match '2024_05_*/*'`,
	RunE: runSessionsList,
}

var sessionsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the directory of the most recent session",
	RunE:  runSessionsLatest,
}

var sessionsWatchCmd = &cobra.Command{
	Use:   "watch [date/session]",
	Short: "Follow a session's data file as it is recorded",
	Long: `Follow a session's raw_data.csv and print its row count each time it
grows. Defaults to the most recent session. Stop with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionsWatch,
}

var (
	listMatch string
	listDate  string
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsLatestCmd)
	sessionsCmd.AddCommand(sessionsWatchCmd)

	sessionsListCmd.Flags().StringVar(&listMatch, "match", "", "only sessions matching this glob")
	sessionsListCmd.Flags().StringVar(&listDate, "date", "", "only sessions recorded on this day (YYYY_MM_DD)")
}

func openArchive() (*session.Archive, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return session.NewArchive(afero.NewOsFs(), cfg.Record.ArchiveDir), nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}

	sessions, err := archive.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions, err = session.Filter(sessions, listMatch)
	if err != nil {
		return err
	}
	if listDate != "" {
		var onDay []*session.Info
		for _, s := range sessions {
			if s.Date == listDate {
				onDay = append(onDay, s)
			}
		}
		sessions = onDay
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintf(out, "No sessions found in %s.\n", archive.Root())
		return nil
	}

	renderSessionTable(out, sessions, isTerminal(out))
	fmt.Fprintf(out, "\n%s in %s\n", util.Plural(len(sessions), "session"), archive.Root())

	if lock, locked := session.IsLocked(archive.Fs(), archive.Root()); locked {
		fmt.Fprintf(out, "Recording in progress: PID %d on %s (%s board)\n", lock.PID, lock.Hostname, lock.Board)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	synthStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

type column struct {
	title string
	width int
}

var sessionColumns = []column{
	{"DATE", 10},
	{"SESSION", 20},
	{"BOARD", 12},
	{"ROWS", 9},
	{"RECORDED", 19},
}

func renderSessionTable(w io.Writer, sessions []*session.Info, styled bool) {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	cells := make([]string, len(sessionColumns))
	for i, c := range sessionColumns {
		cells[i] = util.PadANSI(style(headerStyle, c.title), c.width)
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))

	for _, s := range sessions {
		boardName, recorded := "-", "-"
		if s.Metadata != nil {
			boardName = s.Metadata.Board
			recorded = s.Metadata.Created.Local().Format("2006-01-02 15:04:05")
		} else if s.Synthetic {
			boardName = "synthetic"
		}

		name := s.Name
		if s.Synthetic {
			name = style(synthStyle, name)
		}
		rows := "?"
		if s.Rows >= 0 {
			rows = strconv.Itoa(s.Rows)
		}
		if s.Rows == 0 {
			rows = style(emptyStyle, rows)
		}

		values := []string{s.Date, name, boardName, rows, recorded}
		for i, c := range sessionColumns {
			cells[i] = util.PadANSI(util.TruncateANSI(values[i], c.width), c.width)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runSessionsLatest(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	latest, err := archive.Latest()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), latest.Dir)
	return nil
}

// findSession resolves "<date>/<name>" or a bare session name. A bare name
// resolves to its most recent occurrence.
func findSession(archive *session.Archive, ref string) (*session.Info, error) {
	if ref == "" {
		return archive.Latest()
	}
	sessions, err := archive.List()
	if err != nil {
		return nil, err
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].Path() == ref || sessions[i].Name == ref {
			return sessions[i], nil
		}
	}
	return nil, errors.NewNotFoundError("session", ref)
}

func runSessionsWatch(cmd *cobra.Command, args []string) error {
	archive, err := openArchive()
	if err != nil {
		return err
	}
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	info, err := findSession(archive, ref)
	if err != nil {
		return err
	}

	watcher, err := session.NewWatcher(info.Dir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", info.Dir, err)
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", info.Path())
	return watcher.Run(ctx, func(rows int) {
		fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), util.Plural(rows, "row"))
	})
}
