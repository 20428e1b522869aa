package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/eegrec/internal/board"
	"github.com/Iron-Ham/eegrec/internal/errors"
)

const maxLogSizeMB = 1000

// ValidationErrors collects every problem found in a Config.
type ValidationErrors []*errors.ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return "invalid configuration: " + describe(e[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid configuration (%d problems):", len(e))
	for _, err := range e {
		sb.WriteString("\n  - " + describe(err))
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// describe renders "field: message (got: value)".
func describe(e *errors.ValidationError) string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message(), e.Value)
}

// ValidLogLevels returns the accepted values of logging.level.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidateUpload checks the settings needed to upload a session. An unset
// bucket is only an error when uploading.
func (c *UploadConfig) ValidateUpload() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.NewValidationError("must be set to upload sessions").WithField("upload.bucket").WithValue(c.Bucket)
	}
	return nil
}

// rule is one check against a config value.
type rule struct {
	field   string
	value   any
	ok      bool
	message string
}

// Validate checks c and returns every problem found.
func (c *Config) Validate() []*errors.ValidationError {
	realBoard, err := board.ParseID(c.Board.Real)
	realBoardOK := err == nil && realBoard != board.Synthetic

	rules := []rule{
		{"record.buffer_seconds", c.Record.BufferSeconds, c.Record.BufferSeconds >= 0, "must be non-negative"},
		{"record.polls", c.Record.Polls, c.Record.Polls >= 0, "must be non-negative"},
		{"record.poll_interval_ms", c.Record.PollIntervalMs, c.Record.PollIntervalMs >= 0, "must be non-negative"},
		{"record.archive_dir", c.Record.ArchiveDir, strings.TrimSpace(c.Record.ArchiveDir) != "", "must not be empty"},

		// The synthetic board is selected with record.synth, never here.
		{"board.real", c.Board.Real, realBoardOK, "must be one of: " + strings.Join(board.RealBoardNames(), ", ")},
		{"board.ip_port", c.Board.IPPort, c.Board.IPPort >= 0 && c.Board.IPPort <= 65535, "must be between 0 and 65535"},
		{"board.timeout_seconds", c.Board.TimeoutSeconds, c.Board.TimeoutSeconds >= 0, "must be non-negative"},
		{"board.ring_buffer_size", c.Board.RingBufferSize, c.Board.RingBufferSize > 0, "must be positive"},

		{"logging.level", c.Logging.Level, c.Logging.Level == "" || slices.Contains(ValidLogLevels(), c.Logging.Level),
			"must be one of: " + strings.Join(ValidLogLevels(), ", ")},
		{"logging.max_size_mb", c.Logging.MaxSizeMB, c.Logging.MaxSizeMB > 0, "must be positive"},
		{"logging.max_size_mb", c.Logging.MaxSizeMB, c.Logging.MaxSizeMB <= maxLogSizeMB, fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB)},
		{"logging.max_backups", c.Logging.MaxBackups, c.Logging.MaxBackups >= 0, "must be non-negative"},

		{"upload.endpoint", c.Upload.Endpoint, c.Upload.Endpoint == "" || strings.HasPrefix(c.Upload.Endpoint, "http://") || strings.HasPrefix(c.Upload.Endpoint, "https://"),
			"must be an http:// or https:// URL"},
	}

	var errs []*errors.ValidationError
	for _, r := range rules {
		if !r.ok {
			errs = append(errs, errors.NewValidationError(r.message).WithField(r.field).WithValue(r.value))
		}
	}
	return errs
}
