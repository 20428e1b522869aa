package board

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	recerrors "github.com/Iron-Ham/eegrec/internal/errors"
)

// newLoopbackGUIStream returns a GUI stream listening on ephemeral loopback
// ports.
func newLoopbackGUIStream(t *testing.T) *guiStream {
	t.Helper()
	d, err := Describe(GUIStream)
	if err != nil {
		t.Fatal(err)
	}
	g := newGUIStream(d, Params{IPAddress: "127.0.0.1"}, options{now: newClock().Now})
	for i := range g.addrs {
		g.addrs[i] = "127.0.0.1:0"
	}
	if err := g.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	t.Cleanup(func() {
		if g.prepared {
			_ = g.Release()
		}
	})
	return g
}

func sendDatagram(t *testing.T, g *guiStream, kind int, payload string) {
	t.Helper()
	conn, err := net.Dial("udp", g.conns[kind].LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, what string, cond func(g *guiStream) bool, g *guiStream) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		ok := cond(g)
		g.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGUIStream_NewUsesWidgetPorts(t *testing.T) {
	d, _ := Describe(GUIStream)
	tests := []struct {
		name   string
		params Params
		want   [3]string
	}{
		{"default ports", Params{IPAddress: "172.30.2.136"}, [3]string{"172.30.2.136:12345", "172.30.2.136:12346", "172.30.2.136:12347"}},
		{"custom base port", Params{IPPort: 5000}, [3]string{":5000", ":5001", ":5002"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGUIStream(d, tt.params, options{now: time.Now})
			if g.addrs != tt.want {
				t.Errorf("addrs = %v, want %v", g.addrs, tt.want)
			}
		})
	}
}

func TestGUIStream_RequiresConnectionParams(t *testing.T) {
	b, err := New(GUIStream, Params{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	err = b.Prepare(context.Background())
	if !errors.Is(err, recerrors.ErrConnectionParamsRequired) {
		t.Errorf("Prepare() error = %v, want ErrConnectionParamsRequired", err)
	}
}

func TestGUIStream_BuffersTimeSeriesWithLatestAuxAndFocus(t *testing.T) {
	g := newLoopbackGUIStream(t)

	// Samples sent before StartStream are dropped. The malformed datagram
	// behind it marks when the socket has been read up to that point.
	sendDatagram(t, g, guiTimeSeries, `{"type":"eeg","data":[9,9,9,9,9,9,9,9]}`)
	sendDatagram(t, g, guiTimeSeries, `{`)
	waitFor(t, "pre-stream datagrams", func(g *guiStream) bool { return g.malformed == 1 }, g)
	sendDatagram(t, g, guiAux, `{"type":"auxiliary","data":[1,0,1,1,1]}`)
	waitFor(t, "digital reads", func(g *guiStream) bool { return g.digital[0] == 1 }, g)

	if err := g.StartStream(100); err != nil {
		t.Fatalf("StartStream() error = %v", err)
	}
	sendDatagram(t, g, guiFocus, `{"type":"focus","data":1.0}`)
	waitFor(t, "focus", func(g *guiStream) bool { return g.focus == 1 }, g)

	sendDatagram(t, g, guiTimeSeries,
		`{"type":"timeSeriesRaw","data":[[1,2],[3,4],[5,6],[7,8],[9,10],[11,12],[13,14],[15,16]]}`)
	waitFor(t, "two samples", func(g *guiStream) bool { return len(g.samples) == 2 }, g)

	m, err := g.GetBoardData()
	if err != nil {
		t.Fatalf("GetBoardData() error = %v", err)
	}
	if len(m) != 14 || m.Samples() != 2 {
		t.Fatalf("matrix is %d x %d, want 14 x 2", len(m), m.Samples())
	}
	if m[1][0] != 1 || m[1][1] != 2 || m[8][1] != 16 {
		t.Errorf("EEG rows = %v ... %v", m[1], m[8])
	}
	if m[9][0] != 1 || m[10][0] != 0 || m[11][1] != 1 {
		t.Errorf("D11, D12, focus = %v, %v, %v", m[9], m[10], m[11])
	}
	if m[0][0] != 0 || m[0][1] != 1 {
		t.Errorf("package numbers = %v", m[0])
	}
	if m[12][0] == 0 {
		t.Error("timestamp not set")
	}

	// A drain clears the buffer.
	if m, _ := g.GetBoardData(); m.Samples() != 0 {
		t.Errorf("second drain returned %d samples", m.Samples())
	}
}

func TestGUIStream_SingleSampleAndMalformedDatagrams(t *testing.T) {
	g := newLoopbackGUIStream(t)
	if err := g.StartStream(100); err != nil {
		t.Fatal(err)
	}

	sendDatagram(t, g, guiTimeSeries, `not json`)
	sendDatagram(t, g, guiTimeSeries, `{"type":"eeg","data":"oops"}`)
	waitFor(t, "malformed count", func(g *guiStream) bool { return g.malformed == 2 }, g)

	// Analog aux reads are ignored.
	sendDatagram(t, g, guiAux, `{"type":"auxiliary","data":[512,300,12]}`)
	sendDatagram(t, g, guiTimeSeries, `{"type":"eeg","data":[0.5,1.5,2.5,3.5,4.5,5.5,6.5,7.5]}`)
	waitFor(t, "one sample", func(g *guiStream) bool { return len(g.samples) == 1 }, g)

	m, _ := g.GetBoardData()
	if m[1][0] != 0.5 || m[8][0] != 7.5 {
		t.Errorf("EEG = %v, %v", m[1], m[8])
	}
	if m[9][0] != 0 || m[10][0] != 0 {
		t.Errorf("analog aux leaked into digital rows: %v, %v", m[9], m[10])
	}
}

func TestGUIStream_RingBufferKeepsNewest(t *testing.T) {
	g := newLoopbackGUIStream(t)
	if err := g.StartStream(2); err != nil {
		t.Fatal(err)
	}

	sendDatagram(t, g, guiTimeSeries, `{"type":"eeg","data":[[1,2,3]]}`)
	waitFor(t, "samples", func(g *guiStream) bool { return g.pkg == 3 }, g)

	m, _ := g.GetBoardData()
	if m.Samples() != 2 || m[1][0] != 2 || m[1][1] != 3 {
		t.Errorf("kept %v, want the newest two samples", m[1])
	}
}

func TestGUIStream_Lifecycle(t *testing.T) {
	g := newLoopbackGUIStream(t)

	if _, err := g.GetBoardData(); !errors.Is(err, recerrors.ErrInvalidTransition) {
		t.Errorf("GetBoardData before StartStream error = %v", err)
	}
	if err := g.Prepare(context.Background()); !errors.Is(err, recerrors.ErrInvalidTransition) {
		t.Errorf("second Prepare error = %v", err)
	}
	if err := g.StartStream(0); !errors.Is(err, recerrors.ErrInvalidInput) {
		t.Errorf("StartStream(0) error = %v", err)
	}
	if err := g.StartStream(10); err != nil {
		t.Fatal(err)
	}
	if err := g.StopStream(); err != nil {
		t.Fatal(err)
	}
	if err := g.StopStream(); !errors.Is(err, recerrors.ErrInvalidTransition) {
		t.Errorf("second StopStream error = %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := g.Release(); !errors.Is(err, recerrors.ErrInvalidTransition) {
		t.Errorf("second Release error = %v", err)
	}
}

func TestGUIStream_PortInUse(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	d, _ := Describe(GUIStream)
	g := newGUIStream(d, Params{IPAddress: "127.0.0.1"}, options{now: time.Now})
	g.addrs = [3]string{"127.0.0.1:0", busy.LocalAddr().String(), "127.0.0.1:0"}

	err = g.Prepare(context.Background())
	if !errors.Is(err, recerrors.ErrBoardUnavailable) {
		t.Errorf("Prepare() error = %v, want ErrBoardUnavailable", err)
	}
	if g.prepared {
		t.Error("board marked prepared after a failed listen")
	}
}
