package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the name of the JSON log file written inside a log directory.
const LogFileName = "eegrec.log"

// Logger is a slog logger that owns its output file. Child loggers made with
// the With methods share the parent's file. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	closer io.Closer
	mu     *sync.Mutex // guards closer across parent and children
}

// NewLogger creates a new Logger that writes JSON-formatted logs to
// {dir}/eegrec.log.
//
// The level parameter controls which messages are logged:
//   - DEBUG: All messages
//   - INFO: Info, Warn, and Error messages
//   - WARN: Warn and Error messages
//   - ERROR: Only Error messages
//
// If dir is empty, logs will be written to stderr.
func NewLogger(dir string, level string) (*Logger, error) {
	if dir == "" {
		return newLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}), nil), nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: parseLevel(level)})
	return newLogger(handler, file), nil
}

// NewLoggerWithRotation is like NewLogger but rotates {dir}/eegrec.log
// according to config. dir must not be empty.
func NewLoggerWithRotation(dir string, level string, config RotationConfig) (*Logger, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory is required for rotation")
	}
	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), config)
	if err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(rw, &slog.HandlerOptions{Level: parseLevel(level)})
	return newLogger(handler, rw), nil
}

// NewTeeLogger writes human-readable text to console at consoleLevel and, when
// dir is not empty, JSON to a rotating {dir}/eegrec.log at fileLevel.
func NewTeeLogger(console io.Writer, consoleLevel string, dir string, fileLevel string, config RotationConfig) (*Logger, error) {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: parseLevel(consoleLevel)})
	if dir == "" {
		return newLogger(consoleHandler, nil), nil
	}

	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), config)
	if err != nil {
		return nil, err
	}
	fileHandler := slog.NewJSONHandler(rw, &slog.HandlerOptions{Level: parseLevel(fileLevel)})
	return newLogger(teeHandler{consoleHandler, fileHandler}, rw), nil
}

func newLogger(h slog.Handler, closer io.Closer) *Logger {
	return &Logger{logger: slog.New(h), closer: closer, mu: &sync.Mutex{}}
}

var slogLevels = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// parseLevel maps a level name in any case to its slog.Level. Unknown names
// map to info.
func parseLevel(level string) slog.Level {
	return slogLevels[ParseLevel(level)]
}

// WithSession tags every entry with the session directory name.
func (l *Logger) WithSession(session string) *Logger {
	return l.child(slog.String("session", session))
}

// WithBoard tags every entry with the board name.
func (l *Logger) WithBoard(board string) *Logger {
	return l.child(slog.String("board", board))
}

// WithState tags every entry with a stream controller state.
func (l *Logger) WithState(state string) *Logger {
	return l.child(slog.String("state", state))
}

// With adds alternating key-value pairs. Pairs whose key is not a string are
// dropped.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	var attrs []any
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	return l.child(attrs...)
}

func (l *Logger) child(attrs ...any) *Logger {
	return &Logger{logger: l.logger.With(attrs...), closer: l.closer, mu: l.mu}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *Logger) log(level slog.Level, msg string, args []any) {
	l.logger.Log(context.Background(), level, msg, args...)
}

// Close flushes and closes the log file. Loggers writing only to a console
// stream have nothing to close. Child loggers share the parent's file, so
// closing any of them closes it for all.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	if s, ok := l.closer.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
	}
	if err := l.closer.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	l.closer = nil
	return nil
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return newLogger(slog.NewJSONHandler(io.Discard, nil), nil)
}

// ParseLevel returns the canonical name of level, or LevelInfo if it is not
// a known level.
func ParseLevel(level string) string {
	up := strings.ToUpper(level)
	if _, ok := slogLevels[up]; ok {
		return up
	}
	return LevelInfo
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// teeHandler fans records out to every handler that accepts the level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
