// Package recorder runs one recording session end to end: it allocates the
// session directory, writes the CSV header and metadata, and streams the
// selected board into the session's data file.
package recorder

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/board"
	"github.com/Iron-Ham/eegrec/internal/config"
	"github.com/Iron-Ham/eegrec/internal/datafile"
	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/logging"
	"github.com/Iron-Ham/eegrec/internal/session"
	"github.com/Iron-Ham/eegrec/internal/stream"
)

// BoardFactory builds the board for a run.
type BoardFactory func(id board.ID, params board.Params) (board.Board, error)

// Summary describes a finished (or failed) run.
type Summary struct {
	Session *session.Session
	Layout  board.Layout
	Columns []string
	Result  stream.Result
}

// Recorder holds the collaborators of a run. The zero configuration records
// to the OS filesystem in real time.
type Recorder struct {
	fs       afero.Fs
	now      func() time.Time
	sleeper  stream.Sleeper
	newBoard BoardFactory
	logger   *logging.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithFs sets the filesystem the archive lives on.
func WithFs(fs afero.Fs) Option {
	return func(r *Recorder) { r.fs = fs }
}

// WithClock sets the time source for session dating and generated samples.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithSleeper sets the sleeper used between polls.
func WithSleeper(s stream.Sleeper) Option {
	return func(r *Recorder) { r.sleeper = s }
}

// WithBoardFactory replaces board.New.
func WithBoardFactory(f BoardFactory) Option {
	return func(r *Recorder) { r.newBoard = f }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// New returns a Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		fs:      afero.NewOsFs(),
		now:     time.Now,
		sleeper: stream.TimerSleeper{},
		logger:  logging.NopLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.newBoard == nil {
		now := r.now
		r.newBoard = func(id board.ID, params board.Params) (board.Board, error) {
			return board.New(id, params, board.WithClock(now), board.WithSeed(now().UnixNano()))
		}
	}
	return r
}

// Run records one session as configured by cfg. The returned summary is
// non-nil once the session directory exists, even when the run fails.
func (r *Recorder) Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	id, err := cfg.BoardID()
	if err != nil {
		return nil, err
	}
	layout, err := board.LayoutFor(id)
	if err != nil {
		return nil, err
	}

	archive := session.NewArchive(r.fs, cfg.Record.ArchiveDir)
	sess, err := archive.Create(r.now(), id == board.Synthetic)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Session: sess, Layout: layout, Columns: layout.Columns()}
	logger := r.logger.WithSession(sess.Name).WithBoard(id.String())
	logger.Info("session created", "dir", sess.Dir, "id", sess.ID)

	if err := datafile.WriteHeader(r.fs, sess.DataPath(), summary.Columns); err != nil {
		return summary, errors.NewSessionError("failed to write data header", err).WithSessionDir(sess.Dir)
	}
	if cfg.Record.WriteMetadata {
		if err := session.WriteMetadata(r.fs, sess.MetadataPath(), session.NewMetadata(sess, layout)); err != nil {
			return summary, errors.NewSessionError("failed to write metadata", err).WithSessionDir(sess.Dir)
		}
	}

	if cfg.Logging.Debug {
		for _, f := range layout.Fields() {
			logger.Debug("channel layout", "channel", f.Label, "rows", f.Value)
		}
		logger.Debug("board info", "sampling_rate", layout.SamplingRate, "board_id", int(id))
	}

	b, err := r.newBoard(id, cfg.Board.Params())
	if err != nil {
		return summary, err
	}

	sink := stream.SinkFunc(func(m board.Matrix, rows []int) (int, error) {
		return datafile.Append(r.fs, sess.DataPath(), m, rows)
	})
	ctrl := stream.New(b, sink, stream.Options{
		Rows:       layout.Selected(),
		BufferSize: cfg.Board.RingBufferSize,
		Warmup:     cfg.Record.Warmup(),
		Interval:   cfg.Record.PollInterval(),
		Polls:      cfg.Record.Polls,
	}, stream.WithSleeper(r.sleeper), stream.WithLogger(logger))

	summary.Result, err = ctrl.Run(ctx)
	if err != nil {
		logFailure(logger, err, "polls", summary.Result.Polls)
		return summary, err
	}
	logger.Info("recording finished",
		"polls", summary.Result.Polls,
		"samples", summary.Result.Samples,
		"interrupted", summary.Result.Interrupted,
	)
	return summary, nil
}

// logFailure logs err at the level its severity calls for.
func logFailure(l *logging.Logger, err error, args ...any) {
	sev := errors.GetSeverity(err)
	args = append([]any{"error", err.Error(), "severity", sev.String()}, args...)
	switch sev {
	case errors.SeverityDebug:
		l.Debug("recording failed", args...)
	case errors.SeverityInfo:
		l.Info("recording failed", args...)
	case errors.SeverityWarning:
		l.Warn("recording failed", args...)
	default:
		l.Error("recording failed", args...)
	}
}
