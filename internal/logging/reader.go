package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// LogEntry is one parsed line of a JSON log file.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Session   string         `json:"session,omitempty"`
	Board     string         `json:"board,omitempty"`
	State     string         `json:"state,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero-valued fields do not filter.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level string
	// Session keeps entries tagged with this session name.
	Session string
	// Board keeps entries tagged with this board name.
	Board string
	// Since keeps entries at or after this time.
	Since time.Time
	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

var standardFields = map[string]bool{
	"time":    true,
	"level":   true,
	"msg":     true,
	"session": true,
	"board":   true,
	"state":   true,
}

// ReadLogFile parses every JSON line of path, skipping lines that do not
// parse. Entries are sorted by timestamp.
func ReadLogFile(fs afero.Fs, path string) ([]LogEntry, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file at %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Timestamp = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.Session, _ = raw["session"].(string)
	entry.Board, _ = raw["board"].(string)
	entry.State, _ = raw["state"].(string)

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching every criterion in filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}
	var out []LogEntry
	for _, e := range entries {
		if matchesFilter(e, filter) {
			out = append(out, e)
		}
	}
	return out
}

func matchesFilter(e LogEntry, f LogFilter) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[e.Level]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.Session != "" && e.Session != f.Session {
		return false
	}
	if f.Board != "" && e.Board != f.Board {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(e.Message, f.MessageContains) {
		return false
	}
	return true
}

// FormatEntry renders e as a single human-readable line:
//
//	[2024-05-01 09:30:00.000] INFO - poll complete (session=Session_1_SYNTH, board=synthetic) {"samples":250}
func FormatEntry(e LogEntry) string {
	parts := []string{
		fmt.Sprintf("[%s]", e.Timestamp.Format("2006-01-02 15:04:05.000")),
		e.Level,
		"-",
		e.Message,
	}

	var ctx []string
	if e.Session != "" {
		ctx = append(ctx, "session="+e.Session)
	}
	if e.Board != "" {
		ctx = append(ctx, "board="+e.Board)
	}
	if e.State != "" {
		ctx = append(ctx, "state="+e.State)
	}
	if len(ctx) > 0 {
		parts = append(parts, "("+strings.Join(ctx, ", ")+")")
	}

	if len(e.Attrs) > 0 {
		if b, err := json.Marshal(e.Attrs); err == nil {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, " ")
}
