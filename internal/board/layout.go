package board

import (
	"fmt"
	"slices"
)

// Layout is the subset of a board's channel map that a recording uses.
// It is computed once per run and never mutated.
type Layout struct {
	Board        ID
	SamplingRate int
	Timestamp    int
	EEG          []int
	Battery      int
	Resistance   []int
	Aux          []int
}

// LayoutFor looks up the recording layout for a board. The synthetic board
// records its accelerometer channels as auxiliary data; real boards record
// their "other" channels.
func LayoutFor(id ID) (Layout, error) {
	d, err := Describe(id)
	if err != nil {
		return Layout{}, err
	}
	aux := d.Other
	if id == Synthetic {
		aux = d.Accel
	}
	return Layout{
		Board:        id,
		SamplingRate: d.SamplingRate,
		Timestamp:    d.Timestamp,
		EEG:          slices.Clone(d.EEG),
		Battery:      d.Battery,
		Resistance:   slices.Clone(d.Resistance),
		Aux:          slices.Clone(aux),
	}, nil
}

// Selected returns the matrix rows written to disk: timestamp, then EEG,
// then auxiliary channels. Battery and resistance rows are never selected.
func (l Layout) Selected() []int {
	rows := make([]int, 0, 1+len(l.EEG)+len(l.Aux))
	rows = append(rows, l.Timestamp)
	rows = append(rows, l.EEG...)
	rows = append(rows, l.Aux...)
	return rows
}

// Columns returns the CSV header matching Selected.
func (l Layout) Columns() []string {
	cols := make([]string, 0, 1+len(l.EEG)+len(l.Aux))
	cols = append(cols, "timestamp")
	for i := range l.EEG {
		cols = append(cols, fmt.Sprintf("ch_%d", i+1))
	}
	for i := range l.Aux {
		cols = append(cols, fmt.Sprintf("aux_%d", i+1))
	}
	return cols
}

// Field is a labelled value for debug output.
type Field struct {
	Label string
	Value any
}

// Fields lists the layout's channel assignments in a fixed order.
func (l Layout) Fields() []Field {
	return []Field{
		{Label: "eeg", Value: l.EEG},
		{Label: "battery", Value: l.Battery},
		{Label: "resistance", Value: l.Resistance},
		{Label: "aux", Value: l.Aux},
		{Label: "timestamp", Value: l.Timestamp},
	}
}
