package board

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/eegrec/internal/errors"
)

// Matrix holds one drain of board data: Matrix[row][sample].
type Matrix [][]float64

// Samples returns the number of samples (columns) in the matrix.
func (m Matrix) Samples() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Select returns the given rows in order. The returned rows share storage
// with m.
func (m Matrix) Select(rows []int) (Matrix, error) {
	out := make(Matrix, len(rows))
	for i, r := range rows {
		if r < 0 || r >= len(m) {
			return nil, fmt.Errorf("%w: row %d of %d", errors.ErrRowOutOfRange, r, len(m))
		}
		out[i] = m[r]
	}
	return out, nil
}

// Board is the acquisition surface the recorder drives. Implementations are
// used from a single goroutine.
type Board interface {
	// Prepare acquires the device (or generator) for exclusive use.
	Prepare(ctx context.Context) error
	// StartStream begins buffering up to bufferSize samples.
	StartStream(bufferSize int) error
	// GetBoardData returns every buffered sample and clears the buffer.
	GetBoardData() (Matrix, error)
	// StopStream stops buffering.
	StopStream() error
	// Release gives the device back.
	Release() error
	// Descriptor returns the static channel map.
	Descriptor() Descriptor
}

// Params carries connection settings for real devices. Which fields apply
// depends on the board; none has a default.
type Params struct {
	SerialPort string
	MACAddress string
	IPAddress  string
	IPPort     int
	Timeout    time.Duration
}

// IsZero reports whether no connection parameter is set. Timeout only tunes
// a connection and does not count.
func (p Params) IsZero() bool {
	return p.SerialPort == "" && p.MACAddress == "" && p.IPAddress == "" && p.IPPort == 0
}

// Option configures a board built by New.
type Option func(*options)

type options struct {
	now  func() time.Time
	seed int64
}

// WithClock sets the time source used by generated boards.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSeed seeds the synthetic noise generator.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// New builds the backend for id.
func New(id ID, params Params, opts ...Option) (Board, error) {
	o := options{now: time.Now, seed: 1}
	for _, opt := range opts {
		opt(&o)
	}

	d, err := Describe(id)
	if err != nil {
		return nil, err
	}

	switch id {
	case Synthetic:
		return newSynthetic(d, o), nil
	case Cyton, CytonDaisy:
		return &cyton{desc: d, params: params}, nil
	case GUIStream:
		return newGUIStream(d, params, o), nil
	}
	return nil, fmt.Errorf("%w: %s", errors.ErrUnknownBoard, id)
}
