package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Iron-Ham/eegrec/internal/errors"
)

// DefaultGUIPort is the networking widget's time-series port. The widget
// sends focus on the next port and auxiliary data on the one after.
const DefaultGUIPort = 12345

const (
	guiTimeSeries = iota
	guiFocus
	guiAux
)

// The widget's dongle build sends five digital reads (D11, D12, D13, D17,
// D18). Only D11 and D12 are wired as inputs.
const (
	dongleDigitalReads = 5
	pinD11             = 0
	pinD12             = 1
)

// guiMessage is one datagram from the networking widget, e.g.
// {"type":"timeSeriesRaw","data":[[...],[...]]} or {"type":"focus","data":1.0}.
type guiMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// guiStream buffers samples that the OpenBCI GUI forwards over UDP. Reader
// goroutines run from Prepare until Release; samples are only kept while
// streaming.
type guiStream struct {
	desc  Descriptor
	now   func() time.Time
	ready bool // connection parameters were given
	addrs [3]string

	conns []net.PacketConn
	wg    sync.WaitGroup

	mu         sync.Mutex
	prepared   bool
	streaming  bool
	started    bool
	bufferSize int
	samples    [][]float64 // each NumRows long
	pkg        int64
	digital    [2]float64
	focus      float64
	malformed  int
}

func newGUIStream(d Descriptor, params Params, o options) *guiStream {
	port := params.IPPort
	if port == 0 {
		port = DefaultGUIPort
	}
	g := &guiStream{desc: d, now: o.now, ready: !params.IsZero()}
	for i := range g.addrs {
		g.addrs[i] = net.JoinHostPort(params.IPAddress, strconv.Itoa(port+i))
	}
	return g
}

func (g *guiStream) Descriptor() Descriptor { return g.desc }

func (g *guiStream) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return g.err("prepare session", err)
	}
	g.mu.Lock()
	prepared := g.prepared
	g.mu.Unlock()
	if prepared {
		return g.err("prepare session", errors.ErrInvalidTransition)
	}
	if !g.ready {
		return g.err("prepare session", errors.ErrConnectionParamsRequired)
	}

	var lc net.ListenConfig
	conns := make([]net.PacketConn, 0, len(g.addrs))
	for _, addr := range g.addrs {
		conn, err := lc.ListenPacket(ctx, "udp", addr)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return g.err("listen on "+addr, fmt.Errorf("%w: %v", errors.ErrBoardUnavailable, err))
		}
		conns = append(conns, conn)
	}

	g.mu.Lock()
	g.conns = conns
	g.prepared = true
	g.mu.Unlock()
	for kind, conn := range conns {
		g.wg.Add(1)
		go g.read(kind, conn)
	}
	return nil
}

func (g *guiStream) read(kind int, conn net.PacketConn) {
	defer g.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		g.handle(kind, buf[:n])
	}
}

func (g *guiStream) handle(kind int, datagram []byte) {
	var msg guiMessage
	err := json.Unmarshal(datagram, &msg)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.malformed++
		return
	}

	switch kind {
	case guiTimeSeries:
		if !g.streaming {
			return
		}
		channels, err := decodeTimeSeries(msg.Data)
		if err != nil {
			g.malformed++
			return
		}
		g.appendSamples(channels)
	case guiFocus:
		var v float64
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			g.malformed++
			return
		}
		// The widget sends the focus flag as a float.
		g.focus = float64(int64(v))
	case guiAux:
		var reads []float64
		if msg.Type != "auxiliary" || json.Unmarshal(msg.Data, &reads) != nil || len(reads) != dongleDigitalReads {
			// accelerometer and analog reads share the port
			return
		}
		g.digital = [2]float64{reads[pinD11], reads[pinD12]}
	}
}

// decodeTimeSeries accepts channels x samples or a single sample with one
// value per channel.
func decodeTimeSeries(data json.RawMessage) ([][]float64, error) {
	var nested [][]float64
	if err := json.Unmarshal(data, &nested); err == nil {
		return nested, nil
	}
	var flat []float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	channels := make([][]float64, len(flat))
	for i, v := range flat {
		channels[i] = []float64{v}
	}
	return channels, nil
}

// appendSamples must be called with mu held.
func (g *guiStream) appendSamples(channels [][]float64) {
	n := 0
	for _, ch := range channels {
		n = max(n, len(ch))
	}
	ts := float64(g.now().UnixNano()) / float64(time.Second)
	for j := 0; j < n; j++ {
		row := make([]float64, g.desc.NumRows)
		row[0] = float64(g.pkg % 256)
		for i, ch := range g.desc.EEG {
			if i < len(channels) && j < len(channels[i]) {
				row[ch] = channels[i][j]
			}
		}
		row[g.desc.Other[0]] = g.digital[0]
		row[g.desc.Other[1]] = g.digital[1]
		row[g.desc.Other[2]] = g.focus
		row[g.desc.Timestamp] = ts
		g.samples = append(g.samples, row)
		g.pkg++
	}
	if over := len(g.samples) - g.bufferSize; over > 0 {
		g.samples = g.samples[over:]
	}
}

func (g *guiStream) StartStream(bufferSize int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.prepared || g.streaming {
		return g.err("start stream", errors.ErrInvalidTransition)
	}
	if bufferSize <= 0 {
		return g.err("start stream", errors.ErrInvalidInput)
	}
	g.bufferSize = bufferSize
	g.samples = nil
	g.streaming = true
	g.started = true
	return nil
}

func (g *guiStream) GetBoardData() (Matrix, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.prepared || !g.started {
		return nil, g.err("get board data", errors.ErrInvalidTransition)
	}
	m := make(Matrix, g.desc.NumRows)
	for r := range m {
		m[r] = make([]float64, len(g.samples))
		for j, sample := range g.samples {
			m[r][j] = sample[r]
		}
	}
	g.samples = nil
	return m, nil
}

func (g *guiStream) StopStream() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.streaming {
		return g.err("stop stream", errors.ErrInvalidTransition)
	}
	g.streaming = false
	return nil
}

func (g *guiStream) Release() error {
	g.mu.Lock()
	if !g.prepared {
		g.mu.Unlock()
		return g.err("release session", errors.ErrInvalidTransition)
	}
	var errs []error
	for _, c := range g.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	g.conns = nil
	g.prepared = false
	g.streaming = false
	g.mu.Unlock()

	g.wg.Wait()
	if len(errs) > 0 {
		return g.err("release session", errors.Join(errs...))
	}
	return nil
}

func (g *guiStream) err(op string, cause error) error {
	return errors.NewBoardError(op, cause).WithBoard(g.desc.ID.String())
}
