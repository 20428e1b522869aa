package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/eegrec/internal/config"
	"github.com/Iron-Ham/eegrec/internal/logging"
	"github.com/Iron-Ham/eegrec/internal/recorder"
	"github.com/Iron-Ham/eegrec/internal/session"
)

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	id, err := cfg.BoardID()
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	lock, err := session.AcquireLock(fs, cfg.Record.ArchiveDir, id.String(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release archive lock", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := recorder.New(recorder.WithFs(fs), recorder.WithLogger(logger)).Run(ctx, cfg)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	return err
}

// newLogger logs text to console and, when logging.file is set, JSON to the
// archive's log file.
func newLogger(console io.Writer, cfg *config.Config) (*logging.Logger, error) {
	dir := ""
	if cfg.Logging.File {
		dir = cfg.Record.ArchiveDir
	}
	level := cfg.Logging.ConsoleLevel()
	return logging.NewTeeLogger(console, level, dir, level, cfg.Logging.Rotation())
}

func printSummary(w io.Writer, s *recorder.Summary) {
	fmt.Fprintf(w, "Session:  %s\n", s.Session.Name)
	fmt.Fprintf(w, "Data:     %s\n", s.Session.DataPath())
	fmt.Fprintf(w, "Board:    %s (%d Hz, %d columns)\n", s.Layout.Board, s.Layout.SamplingRate, len(s.Columns))
	fmt.Fprintf(w, "Polls:    %d\n", s.Result.Polls)
	fmt.Fprintf(w, "Samples:  %d\n", s.Result.Samples)
	if s.Result.Interrupted {
		fmt.Fprintln(w, "Stopped early: interrupted")
	}
}
