// Package stream drives a board through one recording: prepare, stream,
// a bounded (or interrupt-terminated) sequence of drains, then teardown.
package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Iron-Ham/eegrec/internal/board"
	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/logging"
)

// State is the controller's view of the board lifecycle.
type State int

const (
	Unopened State = iota
	Prepared
	Streaming
	Stopped
	Released
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Prepared:
		return "prepared"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal next states.
var transitions = map[State][]State{
	Unopened:  {Prepared},
	Prepared:  {Streaming, Released},
	Streaming: {Stopped},
	Stopped:   {Released},
}

// Sink receives each drained matrix along with the rows to keep.
type Sink interface {
	Append(m board.Matrix, rows []int) (int, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(m board.Matrix, rows []int) (int, error)

// Append calls f.
func (f SinkFunc) Append(m board.Matrix, rows []int) (int, error) { return f(m, rows) }

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures a recording.
type Options struct {
	// Rows are the matrix rows handed to the sink, in column order.
	Rows []int
	// BufferSize is passed to StartStream.
	BufferSize int
	// Warmup is slept once after the stream starts.
	Warmup time.Duration
	// Interval is slept between polls.
	Interval time.Duration
	// Polls is the number of drains; 0 drains until the context is cancelled.
	Polls int
}

// Result summarizes a run.
type Result struct {
	Polls       int   // completed drains, including the final one after an interrupt
	Samples     int   // samples accepted by the sink
	Interrupted bool  // the context was cancelled
	State       State // state after teardown
}

// Controller owns a board for one Run.
type Controller struct {
	board   board.Board
	sink    Sink
	opts    Options
	sleeper Sleeper
	logger  *logging.Logger
	state   State
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSleeper replaces the timer-backed sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleeper = s }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New returns a controller in the Unopened state.
func New(b board.Board, sink Sink, opts Options, options ...Option) *Controller {
	c := &Controller{
		board:   b,
		sink:    sink,
		opts:    opts,
		sleeper: TimerSleeper{},
		logger:  logging.NopLogger(),
		state:   Unopened,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

func (c *Controller) transition(to State) error {
	for _, next := range transitions[c.state] {
		if next == to {
			c.logger.WithState(to.String()).Debug("board state changed", "from", c.state.String())
			c.state = to
			return nil
		}
	}
	return errors.NewBoardError(fmt.Sprintf("%s -> %s", c.state, to), errors.ErrInvalidTransition).
		WithBoard(c.board.Descriptor().ID.String()).
		WithState(c.state.String())
}

// Run records until the poll budget is spent or ctx is cancelled. The board
// is stopped and released on every exit path; teardown errors are joined with
// the run error. Cancellation is not an error: the buffer is drained once more
// and Result.Interrupted is set.
func (c *Controller) Run(ctx context.Context) (res Result, err error) {
	if c.state != Unopened {
		return Result{State: c.state}, c.transition(Prepared)
	}

	defer func() {
		if terr := c.teardown(); terr != nil {
			err = stderrors.Join(err, terr)
		}
		res.State = c.state
	}()

	if err := c.board.Prepare(ctx); err != nil {
		if ctx.Err() != nil {
			res.Interrupted = true
			return res, nil
		}
		return res, err
	}
	if err := c.transition(Prepared); err != nil {
		return res, err
	}

	if err := c.board.StartStream(c.opts.BufferSize); err != nil {
		return res, err
	}
	if err := c.transition(Streaming); err != nil {
		return res, err
	}
	c.logger.Info("stream started", "buffer_size", c.opts.BufferSize, "warmup", c.opts.Warmup.String())

	if err := c.sleeper.Sleep(ctx, c.opts.Warmup); err != nil {
		return c.interrupted(res, err)
	}

	for poll := 0; c.opts.Polls == 0 || poll < c.opts.Polls; poll++ {
		n, err := c.drain(poll)
		if err != nil {
			return res, err
		}
		res.Polls++
		res.Samples += n

		if c.opts.Polls != 0 && poll == c.opts.Polls-1 {
			break
		}
		if err := c.sleeper.Sleep(ctx, c.opts.Interval); err != nil {
			return c.interrupted(res, err)
		}
	}
	return res, nil
}

// interrupted handles a sleep that ended early. Only cancellation is
// expected here; anything else is returned as is.
func (c *Controller) interrupted(res Result, err error) (Result, error) {
	if !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded) {
		return res, err
	}
	res.Interrupted = true
	c.logger.Info("interrupted, flushing buffered samples")

	n, derr := c.drain(res.Polls)
	if derr != nil {
		return res, derr
	}
	res.Polls++
	res.Samples += n
	return res, nil
}

func (c *Controller) drain(poll int) (int, error) {
	m, err := c.board.GetBoardData()
	if err != nil {
		return 0, errors.NewStreamError("failed to read board data", err).WithPoll(poll)
	}
	n, err := c.sink.Append(m, c.opts.Rows)
	if err != nil {
		return n, errors.NewStreamError("failed to write samples", err).WithPoll(poll)
	}
	c.logger.Debug("poll complete", "poll", poll, "samples", n, "rows", len(m))
	return n, nil
}

// teardown stops and releases whatever the run acquired.
func (c *Controller) teardown() error {
	var errs []error
	if c.state == Streaming {
		if err := c.board.StopStream(); err != nil {
			errs = append(errs, err)
		} else if err := c.transition(Stopped); err != nil {
			errs = append(errs, err)
		}
	}
	if c.state == Prepared || c.state == Stopped {
		if err := c.board.Release(); err != nil {
			errs = append(errs, err)
		} else if err := c.transition(Released); err != nil {
			errs = append(errs, err)
		}
	}
	if c.state == Streaming {
		// StopStream failed; release anyway.
		if err := c.board.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.logger.Error("teardown failed", "error", stderrors.Join(errs...).Error())
	}
	return stderrors.Join(errs...)
}
