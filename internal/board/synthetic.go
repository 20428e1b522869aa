package board

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Iron-Ham/eegrec/internal/errors"
)

// synthetic generates samples on demand from the elapsed clock time, so a
// drain returns exactly the samples a real board would have buffered since
// the previous drain. No goroutine is involved.
type synthetic struct {
	desc Descriptor
	now  func() time.Time
	rng  *rand.Rand

	prepared  bool
	streaming bool

	bufferSize int
	start      time.Time
	stoppedAt  time.Time
	emitted    int64 // samples generated since start, including dropped ones
}

func newSynthetic(d Descriptor, o options) *synthetic {
	seed := uint64(o.seed)
	return &synthetic{
		desc: d,
		now:  o.now,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *synthetic) Descriptor() Descriptor { return s.desc }

func (s *synthetic) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewBoardError("prepare session", err).WithBoard(s.desc.ID.String())
	}
	if s.prepared {
		return s.transitionErr("prepare session")
	}
	s.prepared = true
	return nil
}

func (s *synthetic) StartStream(bufferSize int) error {
	if !s.prepared || s.streaming {
		return s.transitionErr("start stream")
	}
	if bufferSize <= 0 {
		return errors.NewBoardError("start stream", errors.ErrInvalidInput).WithBoard(s.desc.ID.String())
	}
	s.bufferSize = bufferSize
	s.start = s.now()
	s.stoppedAt = time.Time{}
	s.emitted = 0
	s.streaming = true
	return nil
}

func (s *synthetic) GetBoardData() (Matrix, error) {
	if !s.prepared || s.start.IsZero() {
		return nil, s.transitionErr("get board data")
	}

	until := s.now()
	if !s.stoppedAt.IsZero() {
		until = s.stoppedAt
	}
	// Sample 0 is buffered the moment streaming starts.
	total := until.Sub(s.start).Nanoseconds()*int64(s.desc.SamplingRate)/int64(time.Second) + 1
	pending := total - s.emitted
	if pending < 0 {
		pending = 0
	}

	// The ring buffer only holds the newest bufferSize samples.
	first := s.emitted
	if pending > int64(s.bufferSize) {
		first = total - int64(s.bufferSize)
		pending = int64(s.bufferSize)
	}

	m := make(Matrix, s.desc.NumRows)
	for r := range m {
		m[r] = make([]float64, pending)
	}
	for j := int64(0); j < pending; j++ {
		s.fill(m, int(j), first+j)
	}
	s.emitted = total
	return m, nil
}

// fill writes sample k of the stream into column col.
func (s *synthetic) fill(m Matrix, col int, k int64) {
	d := s.desc
	rate := float64(d.SamplingRate)
	t := float64(k) / rate

	m[0][col] = float64(k % 256)
	for i, ch := range d.EEG {
		freq := float64(i + 1)
		m[ch][col] = 10*math.Sin(2*math.Pi*freq*t) + s.rng.NormFloat64()
	}
	for _, ch := range d.Accel {
		m[ch][col] = s.rng.Float64()*2 - 1
	}
	for _, ch := range d.Gyro {
		m[ch][col] = s.rng.Float64()*500 - 250
	}
	for _, ch := range d.EDA {
		m[ch][col] = 1 + s.rng.Float64()
	}
	for _, ch := range d.PPG {
		m[ch][col] = 500 + 50*math.Sin(2*math.Pi*1.2*t)
	}
	for _, ch := range d.Temperature {
		m[ch][col] = 36.5 + s.rng.Float64()/10
	}
	for _, ch := range d.Resistance {
		m[ch][col] = 1000 + s.rng.Float64()*100
	}
	if d.Battery != NoChannel {
		m[d.Battery][col] = 95
	}

	ts := s.start.Add(time.Duration(float64(k) / rate * float64(time.Second)))
	m[d.Timestamp][col] = float64(ts.UnixNano()) / float64(time.Second)
	m[d.Marker][col] = 0
}

func (s *synthetic) StopStream() error {
	if !s.streaming {
		return s.transitionErr("stop stream")
	}
	s.streaming = false
	s.stoppedAt = s.now()
	return nil
}

func (s *synthetic) Release() error {
	if !s.prepared {
		return s.transitionErr("release session")
	}
	s.prepared = false
	s.streaming = false
	return nil
}

func (s *synthetic) transitionErr(op string) error {
	return errors.NewBoardError(op, errors.ErrInvalidTransition).WithBoard(s.desc.ID.String())
}
