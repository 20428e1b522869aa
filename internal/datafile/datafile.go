// Package datafile writes recorded samples to CSV.
//
// Every write is a single open-write-close on the target file. Nothing is
// buffered between calls, so a file on disk always holds whole row groups
// except when the process dies during an append.
package datafile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/board"
)

// FileName is the data file created in every session directory.
const FileName = "raw_data.csv"

// WriteHeader creates (or truncates) path and writes the header row.
func WriteHeader(fs afero.Fs, path string, columns []string) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	return f.Close()
}

// Append writes one line per sample of m, taking the given rows in order.
// It returns the number of lines written.
func Append(fs afero.Fs, path string, m board.Matrix, rows []int) (int, error) {
	selected, err := m.Select(rows)
	if err != nil {
		return 0, err
	}
	samples := m.Samples()
	if samples == 0 {
		return 0, nil
	}

	f, err := fs.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open data file: %w", err)
	}

	w := csv.NewWriter(f)
	record := make([]string, len(selected))
	for j := 0; j < samples; j++ {
		for i, row := range selected {
			record[i] = strconv.FormatFloat(row[j], 'f', 6, 64)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return j, fmt.Errorf("failed to append sample %d: %w", j, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return samples, fmt.Errorf("failed to append samples: %w", err)
	}
	return samples, f.Close()
}

// ReadAll returns the header and data rows of a data file.
func ReadAll(fs afero.Fs, path string) ([]string, [][]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// CountRows returns the number of data lines (excluding the header).
// Lines are counted without parsing, so a partially written final row
// still counts.
func CountRows(fs afero.Fs, path string) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return countLines(f)
}

func countLines(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lines := 0
	for sc.Scan() {
		lines++
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil
}
