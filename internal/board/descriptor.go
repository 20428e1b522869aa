// Package board adapts EEG acquisition backends to a single interface.
//
// A board is described statically by a [Descriptor] (its channel map) and
// driven through the [Board] lifecycle: Prepare, StartStream, repeated
// GetBoardData drains, StopStream and Release. Channel numbering follows the
// BrainFlow board tables so recordings stay comparable with files produced by
// the vendor tooling.
package board

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/eegrec/internal/errors"
)

// ID identifies a board backend. Values follow BrainFlow's BoardIds, except
// GUIStream, which BrainFlow has no board for.
type ID int

const (
	Synthetic  ID = -1
	Cyton      ID = 0
	CytonDaisy ID = 2
	// GUIStream receives the OpenBCI GUI networking widget's UDP output.
	GUIStream ID = -100
)

// NoChannel marks a channel the board does not provide.
const NoChannel = -1

// String returns the config name of the board.
func (id ID) String() string {
	switch id {
	case Synthetic:
		return "synthetic"
	case Cyton:
		return "cyton"
	case CytonDaisy:
		return "cyton_daisy"
	case GUIStream:
		return "gui_stream"
	default:
		return fmt.Sprintf("board(%d)", int(id))
	}
}

// ParseID resolves a config name ("synthetic", "cyton", "cyton_daisy",
// "gui_stream") to an ID.
// Dashes are accepted in place of underscores.
func ParseID(name string) (ID, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_") {
	case "synthetic", "synth":
		return Synthetic, nil
	case "cyton":
		return Cyton, nil
	case "cyton_daisy", "daisy":
		return CytonDaisy, nil
	case "gui_stream", "gui", "openbci_gui":
		return GUIStream, nil
	}
	return 0, fmt.Errorf("%w: %q", errors.ErrUnknownBoard, name)
}

// RealBoardNames lists the names accepted for non-synthetic recording.
func RealBoardNames() []string {
	return []string{Cyton.String(), CytonDaisy.String(), GUIStream.String()}
}

// Descriptor is the static channel map of a board. Channel values are row
// indices into the matrix returned by GetBoardData.
type Descriptor struct {
	ID           ID
	Name         string
	SamplingRate int
	NumRows      int
	Timestamp    int
	Marker       int
	Battery      int
	EEG          []int
	Accel        []int
	Gyro         []int
	EDA          []int
	PPG          []int
	Temperature  []int
	Resistance   []int
	Other        []int
	Analog       []int
}

func span(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

var descriptors = map[ID]Descriptor{
	Synthetic: {
		ID:           Synthetic,
		Name:         "Synthetic",
		SamplingRate: 250,
		NumRows:      32,
		EEG:          span(1, 16),
		Accel:        span(17, 19),
		Gyro:         span(20, 22),
		EDA:          []int{23},
		PPG:          span(24, 25),
		Temperature:  []int{26},
		Resistance:   span(27, 28),
		Battery:      29,
		Timestamp:    30,
		Marker:       31,
	},
	Cyton: {
		ID:           Cyton,
		Name:         "Cyton",
		SamplingRate: 250,
		NumRows:      24,
		EEG:          span(1, 8),
		Accel:        span(9, 11),
		Other:        span(12, 18),
		Analog:       span(19, 21),
		Battery:      NoChannel,
		Timestamp:    22,
		Marker:       23,
	},
	CytonDaisy: {
		ID:           CytonDaisy,
		Name:         "Cyton Daisy",
		SamplingRate: 125,
		NumRows:      32,
		EEG:          span(1, 16),
		Accel:        span(17, 19),
		Other:        span(20, 26),
		Analog:       span(27, 29),
		Battery:      NoChannel,
		Timestamp:    30,
		Marker:       31,
	},
	// Rows 9-11 carry the latest D11 and D12 digital reads and the focus
	// flag, repeated on every sample.
	GUIStream: {
		ID:           GUIStream,
		Name:         "OpenBCI GUI stream",
		SamplingRate: 250,
		NumRows:      14,
		EEG:          span(1, 8),
		Other:        span(9, 11),
		Battery:      NoChannel,
		Timestamp:    12,
		Marker:       13,
	},
}

// Describe returns the descriptor for id.
func Describe(id ID) (Descriptor, error) {
	d, ok := descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %d", errors.ErrUnknownBoard, int(id))
	}
	return d, nil
}
