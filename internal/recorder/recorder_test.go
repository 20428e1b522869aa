package recorder

import (
	"bytes"
	"context"
	stderrors "errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/board"
	"github.com/Iron-Ham/eegrec/internal/config"
	"github.com/Iron-Ham/eegrec/internal/datafile"
	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/logging"
	"github.com/Iron-Ham/eegrec/internal/session"
	"github.com/Iron-Ham/eegrec/internal/stream"
	"github.com/Iron-Ham/eegrec/internal/testutil"
)

// spyBoard wraps a real board and counts what the controller does with it.
type spyBoard struct {
	board.Board
	gets      int
	sizes     []int // samples returned by each drain
	calls     []string
	beforeGet func(n int)
}

func (s *spyBoard) GetBoardData() (board.Matrix, error) {
	s.gets++
	if s.beforeGet != nil {
		s.beforeGet(s.gets)
	}
	m, err := s.Board.GetBoardData()
	if err == nil {
		s.sizes = append(s.sizes, m.Samples())
	}
	return m, err
}

func (s *spyBoard) StopStream() error {
	s.calls = append(s.calls, "stop")
	return s.Board.StopStream()
}

func (s *spyBoard) Release() error {
	s.calls = append(s.calls, "release")
	return s.Board.Release()
}

type harness struct {
	fs    afero.Fs
	clock *testutil.Clock
	spy   *spyBoard
	built int
}

func newHarness() *harness {
	return &harness{fs: afero.NewMemMapFs(), clock: testutil.NewClock(testutil.Epoch)}
}

func (h *harness) recorder(opts ...Option) *Recorder {
	base := []Option{
		WithFs(h.fs),
		WithClock(h.clock.Now),
		WithSleeper(&testutil.Sleeper{Clock: h.clock}),
		WithBoardFactory(func(id board.ID, params board.Params) (board.Board, error) {
			h.built++
			b, err := board.New(id, params, board.WithClock(h.clock.Now))
			if err != nil {
				return nil, err
			}
			h.spy = &spyBoard{Board: b}
			return h.spy, nil
		}),
	}
	return New(append(base, opts...)...)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Record.ArchiveDir = "/archive"
	cfg.Record.BufferSeconds = 0
	cfg.Record.Polls = 3
	return cfg
}

func TestRun_SyntheticSession(t *testing.T) {
	h := newHarness()

	summary, err := h.recorder().Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Session.Name != "Session_1_SYNTH" {
		t.Errorf("session = %q, want Session_1_SYNTH", summary.Session.Name)
	}
	wantDir := filepath.Join("/archive", "2024_05_01", "Session_1_SYNTH")
	if summary.Session.Dir != wantDir {
		t.Errorf("Dir = %q, want %q", summary.Session.Dir, wantDir)
	}
	if h.spy.gets != 3 {
		t.Errorf("drained %d times, want 3", h.spy.gets)
	}
	// Every poll appends a row group, including the one right after start.
	if len(h.spy.sizes) != 3 {
		t.Fatalf("drain sizes = %v, want 3 drains", h.spy.sizes)
	}
	for i, n := range h.spy.sizes {
		if n == 0 {
			t.Errorf("poll %d drained no samples (sizes %v)", i, h.spy.sizes)
		}
	}
	if summary.Result.Polls != 3 || summary.Result.State != stream.Released {
		t.Errorf("Result = %+v", summary.Result)
	}

	header, rows, err := datafile.ReadAll(h.fs, summary.Session.DataPath())
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	// timestamp + 16 EEG + 3 accel
	if len(header) != 20 || header[0] != "timestamp" || header[1] != "ch_1" || header[19] != "aux_3" {
		t.Errorf("header = %v", header)
	}
	// 1 at start, then 250 per one-second interval
	if len(rows) != summary.Result.Samples || len(rows) != 501 {
		t.Errorf("got %d rows, Samples = %d, want 501", len(rows), summary.Result.Samples)
	}

	last := 0.0
	for i, row := range rows {
		if len(row) != len(header) {
			t.Fatalf("row %d has %d columns, want %d", i, len(row), len(header))
		}
		ts, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			t.Fatalf("row %d timestamp %q: %v", i, row[0], err)
		}
		if ts < last {
			t.Fatalf("row %d timestamp %v < %v", i, ts, last)
		}
		last = ts
	}

	md, err := session.ReadMetadata(h.fs, summary.Session.MetadataPath())
	if err != nil {
		t.Fatalf("ReadMetadata() error = %v", err)
	}
	if md.Board != "synthetic" || md.SamplingRate != 250 || len(md.Columns) != 20 {
		t.Errorf("metadata = %+v", md)
	}
}

func TestRun_SequentialSessions(t *testing.T) {
	h := newHarness()
	rec := h.recorder()

	first, err := rec.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	second, err := rec.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	if first.Session.Name != "Session_1_SYNTH" || second.Session.Name != "Session_2_SYNTH" {
		t.Errorf("sessions = %s, %s", first.Session.Name, second.Session.Name)
	}
}

func TestRun_RealBoardWithoutParams(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.Record.Synth = false

	summary, err := h.recorder().Run(context.Background(), cfg)
	if !stderrors.Is(err, errors.ErrConnectionParamsRequired) {
		t.Fatalf("Run() error = %v, want ErrConnectionParamsRequired", err)
	}

	// The session exists without a suffix and carries the Cyton Daisy header.
	if summary == nil || summary.Session.Name != "Session_1" {
		t.Fatalf("summary = %+v", summary)
	}
	header, rows, err := datafile.ReadAll(h.fs, summary.Session.DataPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(header) != 24 || len(rows) != 0 {
		t.Errorf("header has %d columns and %d rows, want 24 and 0", len(header), len(rows))
	}
	if len(h.spy.calls) != 0 {
		t.Errorf("an unprepared board must not be torn down: %v", h.spy.calls)
	}
}

func TestRun_FailureLoggedBySeverity(t *testing.T) {
	h := newHarness()
	var console bytes.Buffer
	logger, err := logging.NewTeeLogger(&console, logging.LevelDebug, "", logging.LevelDebug, logging.DefaultRotationConfig())
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Record.Synth = false

	if _, err := h.recorder(WithLogger(logger)).Run(context.Background(), cfg); err == nil {
		t.Fatal("Run() succeeded without connection parameters")
	}
	out := console.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "severity=error") {
		t.Errorf("failure not logged at error severity:\n%s", out)
	}
}

func TestRun_CollisionAbortsBeforeWriting(t *testing.T) {
	h := newHarness()
	testutil.WriteFiles(t, h.fs, "/archive", map[string]string{
		"2024_05_01/Session_2_SYNTH/raw_data.csv": "timestamp\n1.0\n",
	})

	summary, err := h.recorder().Run(context.Background(), testConfig())
	if !stderrors.Is(err, errors.ErrSessionExists) {
		t.Fatalf("Run() error = %v, want ErrSessionExists", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
	if h.built != 0 {
		t.Error("board must not be built when the session cannot be created")
	}
	data, _ := afero.ReadFile(h.fs, "/archive/2024_05_01/Session_2_SYNTH/raw_data.csv")
	if string(data) != "timestamp\n1.0\n" {
		t.Errorf("existing data was modified: %q", data)
	}
}

func TestRun_WithoutMetadata(t *testing.T) {
	h := newHarness()
	cfg := testConfig()
	cfg.Record.WriteMetadata = false

	summary, err := h.recorder().Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(h.fs, summary.Session.MetadataPath()); ok {
		t.Error("session.yaml written although disabled")
	}
}

func TestRun_AppendFailureTearsDown(t *testing.T) {
	h := newHarness()
	rec := h.recorder()
	var dataPath string

	rec.newBoard = func(id board.ID, params board.Params) (board.Board, error) {
		b, err := board.New(id, params, board.WithClock(h.clock.Now))
		if err != nil {
			return nil, err
		}
		h.spy = &spyBoard{Board: b, beforeGet: func(n int) {
			if n == 2 {
				_ = h.fs.Remove(dataPath)
			}
		}}
		return h.spy, nil
	}
	dataPath = filepath.Join("/archive", "2024_05_01", "Session_1_SYNTH", datafile.FileName)

	summary, err := rec.Run(context.Background(), testConfig())
	var se *errors.StreamError
	if !stderrors.As(err, &se) || se.Poll != 1 {
		t.Fatalf("Run() error = %v, want StreamError at poll 1", err)
	}
	if summary.Result.State != stream.Released {
		t.Errorf("State = %v, want released", summary.Result.State)
	}
	if strings.Join(h.spy.calls, ",") != "stop,release" {
		t.Errorf("teardown calls = %v", h.spy.calls)
	}
}

func TestRun_InterruptFlushes(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.Record.Polls = 0
	cfg.Record.BufferSeconds = 1

	// warm-up, then one interval before the interrupt
	sleeper := &testutil.Sleeper{Clock: h.clock, CancelAfter: 2, Cancel: cancel}
	summary, err := h.recorder(WithSleeper(sleeper)).Run(ctx, cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !summary.Result.Interrupted || summary.Result.Polls != 2 {
		t.Errorf("Result = %+v", summary.Result)
	}
	n, _ := datafile.CountRows(h.fs, summary.Session.DataPath())
	if n != 501 {
		t.Errorf("rows = %d, want 501", n)
	}
}

func TestRun_DebugLogsChannelLayout(t *testing.T) {
	h := newHarness()
	var console bytes.Buffer
	logger, err := logging.NewTeeLogger(&console, logging.LevelDebug, "", logging.LevelDebug, logging.DefaultRotationConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.recorder(WithLogger(logger)).Run(context.Background(), testConfig()); err != nil {
		t.Fatal(err)
	}

	out := console.String()
	for _, want := range []string{
		"channel=eeg", "channel=battery", "channel=resistance", "channel=aux", "channel=timestamp",
		"sampling_rate=250", "board_id=-1", "session=Session_1_SYNTH",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("debug output missing %q", want)
		}
	}
}

func TestNew_DefaultBoardFactory(t *testing.T) {
	clock := testutil.NewClock(testutil.Epoch)
	r := New(WithClock(clock.Now))
	b, err := r.newBoard(board.Synthetic, board.Params{})
	if err != nil {
		t.Fatal(err)
	}
	if b.Descriptor().SamplingRate != 250 {
		t.Errorf("SamplingRate = %d", b.Descriptor().SamplingRate)
	}
	if _, ok := r.sleeper.(stream.TimerSleeper); !ok {
		t.Errorf("default sleeper = %T", r.sleeper)
	}
}
