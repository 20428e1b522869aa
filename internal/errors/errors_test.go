package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrors_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "session with dir",
			err:  NewSessionError("failed to create session directory", ErrSessionExists).WithSessionDir("a/2024_05_01/Session_2"),
			want: "session error [dir=a/2024_05_01/Session_2]: failed to create session directory: session directory already exists",
		},
		{
			name: "session without cause",
			err:  NewSessionError("failed to write header", nil),
			want: "session error: failed to write header",
		},
		{
			name: "board with state",
			err:  NewBoardError("prepare", ErrConnectionParamsRequired).WithBoard("cyton_daisy").WithState("unopened"),
			want: "board error [board=cyton_daisy, state=unopened]: prepare: board connection parameters required",
		},
		{
			name: "stream at poll zero",
			err:  NewStreamError("failed to write samples", ErrRowOutOfRange).WithPoll(0),
			want: "stream error [poll=0]: failed to write samples: channel row out of range",
		},
		{
			name: "stream without poll",
			err:  NewStreamError("failed to read board data", nil),
			want: "stream error: failed to read board data",
		},
		{
			name: "validation",
			err:  NewValidationError("must be non-negative").WithField("record.polls").WithValue(-1),
			want: "validation error [field=record.polls, value=-1]: must be non-negative",
		},
		{
			name: "not found",
			err:  NewNotFoundError("session", "Session_3"),
			want: "session 'Session_3' not found",
		},
		{
			name: "already exists with cause",
			err:  NewAlreadyExistsError("session", "Session_2_SYNTH").WithCause(fmt.Errorf("mkdir: file exists")),
			want: "session 'Session_2_SYNTH' already exists: mkdir: file exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() =\n  %q\nwant\n  %q", got, tt.want)
			}
		})
	}
}

func TestTypedErrors_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"session wraps sentinel", NewSessionError("x", ErrSessionExists), ErrSessionExists, true},
		{"session does not match other sentinel", NewSessionError("x", ErrSessionExists), ErrArchiveLocked, false},
		{"wrapped twice", fmt.Errorf("run: %w", NewBoardError("x", ErrBoardUnavailable)), ErrBoardUnavailable, true},
		{"stream wraps context", NewStreamError("x", context.Canceled), context.Canceled, true},
		{"already exists session", NewAlreadyExistsError("session", "S"), ErrSessionExists, true},
		{"already exists other", NewAlreadyExistsError("lock", "S"), ErrSessionExists, false},
		{"not found session", NewNotFoundError("session", "S"), ErrSessionNotFound, true},
		{"not found other", NewNotFoundError("board", "S"), ErrSessionNotFound, false},
		{"validation is invalid input", NewValidationError("bad"), ErrInvalidInput, true},
		{"validation cause", NewValidationError("bad").WithCause(ErrUnknownBoard), ErrUnknownBoard, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypedErrors_As(t *testing.T) {
	err := fmt.Errorf("recording failed: %w", NewStreamError("x", nil).WithPoll(4))

	var se *StreamError
	if !As(err, &se) {
		t.Fatal("As() did not find StreamError")
	}
	if se.Poll != 4 {
		t.Errorf("Poll = %d, want 4", se.Poll)
	}
	if se.Message() != "x" {
		t.Errorf("Message() = %q", se.Message())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"validation", NewValidationError("bad"), ExitUsage},
		{"unknown board", fmt.Errorf("parse: %w", ErrUnknownBoard), ExitUsage},
		{"locked", fmt.Errorf("%w: PID 1", ErrArchiveLocked), ExitLocked},
		{"connection params", NewBoardError("prepare", ErrConnectionParamsRequired), ExitBoard},
		{"bare unavailable", ErrBoardUnavailable, ExitBoard},
		{"stream wrapping board", NewStreamError("drain", NewBoardError("read", ErrBoardUnavailable)), ExitStream},
		{"session exists", NewSessionError("create", ErrSessionExists), ExitSession},
		{"session not found", NewNotFoundError("session", "latest"), ExitSession},
		{"joined teardown", Join(NewStreamError("drain", nil), errors.New("release failed")), ExitStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"plain", errors.New("boom"), SeverityError},
		{"session", NewSessionError("create", ErrSessionExists), SeverityError},
		{"board", NewBoardError("prepare", ErrBoardUnavailable), SeverityError},
		{"stream", NewStreamError("drain", nil), SeverityCritical},
		{"stream wrapping board", NewStreamError("drain", NewBoardError("read", nil)), SeverityCritical},
		{"validation", NewValidationError("bad"), SeverityWarning},
		{"joined validation", Join(NewValidationError("a"), NewValidationError("b")), SeverityWarning},
		{"not found", NewNotFoundError("session", "latest"), SeverityWarning},
		{"locked", fmt.Errorf("%w: PID 7", ErrArchiveLocked), SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverity_String(t *testing.T) {
	tests := map[Severity]string{
		SeverityDebug:    "debug",
		SeverityInfo:     "info",
		SeverityWarning:  "warning",
		SeverityError:    "error",
		SeverityCritical: "critical",
		Severity(42):     "unknown",
	}
	for sev, want := range tests {
		if got := sev.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", int(sev), got, want)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"validation", NewValidationError("bad"), true},
		{"unknown board", fmt.Errorf("parse: %w", ErrUnknownBoard), true},
		{"locked", fmt.Errorf("%w: PID 7", ErrArchiveLocked), true},
		{"missing params", NewBoardError("prepare session", ErrConnectionParamsRequired), true},
		{"board unavailable", NewBoardError("prepare session", ErrBoardUnavailable), false},
		{"stream", NewStreamError("drain", nil), false},
		{"not found", NewNotFoundError("session", "latest"), true},
		{"already exists", NewAlreadyExistsError("session", "Session_1"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{
			name: "missing params drops context",
			err:  NewBoardError("prepare session", ErrConnectionParamsRequired).WithBoard("cyton_daisy").WithState("unopened"),
			want: "cyton_daisy: prepare session: board connection parameters required",
		},
		{
			name: "validation keeps the field",
			err:  NewValidationError("must be non-negative").WithField("record.polls").WithValue(-1),
			want: "record.polls: must be non-negative",
		},
		{
			name: "internal error prints in full",
			err:  NewStreamError("failed to write samples", ErrRowOutOfRange).WithPoll(2),
			want: "stream error [poll=2]: failed to write samples: channel row out of range",
		},
		{
			name: "untyped user-facing error is unchanged",
			err:  fmt.Errorf("%w: PID 7", ErrArchiveLocked),
			want: "session archive is locked: PID 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
