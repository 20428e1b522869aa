// Package errors defines the recorder's sentinel errors and the typed errors
// that carry session, board and stream context.
//
// Typed errors wrap a cause and render their context in brackets:
//
//	err := errors.NewSessionError("failed to create session directory", errors.ErrSessionExists).
//		WithSessionDir("sessions_archive/2024_05_01/Session_2")
//	// session error [dir=sessions_archive/2024_05_01/Session_2]: failed to create session directory: ...
//
//	if errors.Is(err, errors.ErrSessionExists) { ... }
//
// Recording has no recoverable error class. Every error that reaches the
// command layer ends the process; [ExitCode] picks the status.
//
// # Classification
//
// [GetSeverity] grades an error for logging. [IsUserFacing] reports whether
// the operator can act on it (bad input, a locked archive, missing board
// parameters), in which case [UserMessage] renders it without context.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers can import only this package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// Session sentinels
var (
	// ErrSessionExists: the computed session directory is already on disk.
	ErrSessionExists = New("session directory already exists")
	// ErrArchiveLocked: another recorder owns the session archive.
	ErrArchiveLocked = New("session archive is locked")
	// ErrSessionNotFound: no session matched a lookup.
	ErrSessionNotFound = New("session not found")
)

// Board sentinels
var (
	ErrUnknownBoard     = New("unknown board")
	ErrBoardUnavailable = New("board unavailable")
	// ErrConnectionParamsRequired: a real board was selected without serial,
	// MAC or IP connection parameters.
	ErrConnectionParamsRequired = New("board connection parameters required")
	// ErrInvalidTransition: a lifecycle call was made in the wrong state.
	ErrInvalidTransition = New("invalid board state transition")
)

// ErrRowOutOfRange: a selected channel row is not present in a sample matrix.
var ErrRowOutOfRange = New("channel row out of range")

var ErrInvalidInput = New("invalid input")

// Severity grades an error for logging.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	// SeverityCritical marks a recording cut short after samples were written.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// classified is implemented by every typed error in this package.
type classified interface {
	Severity() Severity
	IsUserFacing() bool
}

// contextError is embedded by every typed error.
type contextError struct {
	kind       string
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

func (e *contextError) Unwrap() error { return e.cause }

// Message returns the message without context or cause.
func (e *contextError) Message() string { return e.message }

func (e *contextError) Severity() Severity { return e.severity }

func (e *contextError) IsUserFacing() bool { return e.userFacing }

// plain is the message and cause chain without bracketed context.
func (e *contextError) plain() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + plainText(e.cause)
}

// render formats "<kind> [k=v, ...]: message[: cause]".
func (e *contextError) render(fields ...string) string {
	var b strings.Builder
	b.WriteString(e.kind)
	var set []string
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] != "" {
			set = append(set, fields[i]+"="+fields[i+1])
		}
	}
	if len(set) > 0 {
		b.WriteString(" [" + strings.Join(set, ", ") + "]")
	}
	b.WriteString(": " + e.message)
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

// SessionError reports a failure creating or writing a session directory.
type SessionError struct {
	contextError
	SessionDir string
}

// NewSessionError creates a SessionError wrapping cause.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{contextError: contextError{kind: "session error", message: message, cause: cause, severity: SeverityError}}
}

// WithSessionDir records the session directory involved.
func (e *SessionError) WithSessionDir(dir string) *SessionError {
	e.SessionDir = dir
	return e
}

func (e *SessionError) Error() string {
	return e.render("dir", e.SessionDir)
}

// BoardError reports a failure from a board backend or an illegal lifecycle
// call.
type BoardError struct {
	contextError
	Board string
	State string
}

// NewBoardError creates a BoardError wrapping cause.
func NewBoardError(message string, cause error) *BoardError {
	return &BoardError{contextError: contextError{kind: "board error", message: message, cause: cause, severity: SeverityError}}
}

// WithBoard records the board name.
func (e *BoardError) WithBoard(name string) *BoardError {
	e.Board = name
	return e
}

// WithState records the lifecycle state at failure time.
func (e *BoardError) WithState(state string) *BoardError {
	e.State = state
	return e
}

func (e *BoardError) plain() string {
	if e.Board == "" {
		return e.contextError.plain()
	}
	return e.Board + ": " + e.contextError.plain()
}

func (e *BoardError) Error() string {
	return e.render("board", e.Board, "state", e.State)
}

// StreamError reports a failure while draining or persisting a poll.
type StreamError struct {
	contextError
	// Poll is the zero-based poll index, or -1 when unknown.
	Poll int
}

// NewStreamError creates a StreamError wrapping cause.
func NewStreamError(message string, cause error) *StreamError {
	return &StreamError{
		contextError: contextError{kind: "stream error", message: message, cause: cause, severity: SeverityCritical},
		Poll:         -1,
	}
}

// WithPoll records the poll index.
func (e *StreamError) WithPoll(i int) *StreamError {
	e.Poll = i
	return e
}

func (e *StreamError) Error() string {
	poll := ""
	if e.Poll >= 0 {
		poll = fmt.Sprint(e.Poll)
	}
	return e.render("poll", poll)
}

// NotFoundError reports a missing resource. A missing "session" matches
// ErrSessionNotFound.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound && e.ResourceType == "session"
}

func (e *NotFoundError) Severity() Severity { return SeverityWarning }
func (e *NotFoundError) IsUserFacing() bool { return true }

// AlreadyExistsError reports a resource that is already present. An existing
// "session" matches ErrSessionExists.
type AlreadyExistsError struct {
	ResourceType string
	ResourceID   string
	cause        error
}

// NewAlreadyExistsError creates an AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{ResourceType: resourceType, ResourceID: resourceID}
}

// WithCause records the underlying error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

func (e *AlreadyExistsError) Error() string {
	msg := fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AlreadyExistsError) Unwrap() error { return e.cause }

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrSessionExists && e.ResourceType == "session"
}

func (e *AlreadyExistsError) Severity() Severity { return SeverityWarning }
func (e *AlreadyExistsError) IsUserFacing() bool { return true }

// ValidationError reports invalid user input. It always matches
// ErrInvalidInput.
type ValidationError struct {
	contextError
	Field string
	Value any
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{contextError: contextError{
		kind:       "validation error",
		message:    message,
		severity:   SeverityWarning,
		userFacing: true,
	}}
}

// WithField records the offending field.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause records the underlying error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

func (e *ValidationError) Error() string {
	value := ""
	if e.Value != nil {
		value = fmt.Sprint(e.Value)
	}
	return e.render("field", e.Field, "value", value)
}

func (e *ValidationError) plain() string {
	if e.Field == "" {
		return e.contextError.plain()
	}
	return e.Field + ": " + e.contextError.plain()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// GetSeverity returns the severity of the outermost typed error in err's
// chain. A locked archive is a warning; anything else untyped is an error.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var c classified
	if As(err, &c) {
		return c.Severity()
	}
	if Is(err, ErrArchiveLocked) {
		return SeverityWarning
	}
	return SeverityError
}

// IsUserFacing reports whether err describes something the operator can fix
// from the command line.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrInvalidInput) || Is(err, ErrUnknownBoard) || Is(err, ErrArchiveLocked) ||
		Is(err, ErrConnectionParamsRequired) {
		return true
	}
	var c classified
	return As(err, &c) && c.IsUserFacing()
}

// UserMessage renders err for the terminal. User-facing typed errors lose
// their bracketed context; everything else prints in full.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if !IsUserFacing(err) {
		return err.Error()
	}
	return plainText(err)
}

func plainText(err error) string {
	if p, ok := err.(interface{ plain() string }); ok {
		return p.plain()
	}
	return err.Error()
}

// Process exit statuses.
const (
	ExitOK = iota
	ExitFailure
	ExitUsage
	ExitLocked
	ExitSession
	ExitBoard
	ExitStream
)

// ExitCode maps err to a process exit status. More specific classes win:
// a stream failure wrapping a board error exits with ExitStream.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		streamErr  *StreamError
		boardErr   *BoardError
		sessionErr *SessionError
	)
	switch {
	case Is(err, ErrInvalidInput), Is(err, ErrUnknownBoard):
		return ExitUsage
	case Is(err, ErrArchiveLocked):
		return ExitLocked
	case As(err, &streamErr):
		return ExitStream
	case As(err, &boardErr), Is(err, ErrConnectionParamsRequired), Is(err, ErrBoardUnavailable):
		return ExitBoard
	case As(err, &sessionErr), Is(err, ErrSessionExists), Is(err, ErrSessionNotFound):
		return ExitSession
	default:
		return ExitFailure
	}
}
