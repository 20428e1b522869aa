package session

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/logging"
)

// LockFileName is the lock file at the archive root. It is a hidden file, not
// a day directory, so sessions list never shows it.
const LockFileName = ".eegrec.lock"

// Lock is one recorder's exclusive claim on an archive and the board it
// records from.
type Lock struct {
	PID       int       `yaml:"pid"`
	Hostname  string    `yaml:"hostname"`
	Board     string    `yaml:"board"`
	StartedAt time.Time `yaml:"started_at"`

	fs     afero.Fs
	path   string
	logger *logging.Logger
}

// processAlive reports whether pid names a running process.
var processAlive = func(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks for existence without delivering anything.
	return p.Signal(syscall.Signal(0)) == nil
}

func (l *Lock) heldError() error {
	return fmt.Errorf("%w: recording %s as PID %d on %s since %s",
		errors.ErrArchiveLocked, l.Board, l.PID, l.Hostname, l.StartedAt.Format(time.RFC3339))
}

// AcquireLock claims root for the current process. A lock held by a live
// process fails with ErrArchiveLocked; a lock left by a dead one is replaced.
// The logger may be nil.
func AcquireLock(fs afero.Fs, root, boardName string, logger *logging.Logger) (*Lock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, errors.NewSessionError("failed to create archive directory", err).WithSessionDir(root)
	}
	path := filepath.Join(root, LockFileName)

	if held, err := readLock(fs, path); err == nil {
		if processAlive(held.PID) {
			logger.Error("archive is locked", "archive", root, "pid", held.PID, "host", held.Hostname)
			return nil, held.heldError()
		}
		if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		logger.Warn("removed stale archive lock", "archive", root, "old_pid", held.PID)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	l := &Lock{
		PID:       os.Getpid(),
		Hostname:  host,
		Board:     boardName,
		StartedAt: time.Now(),
		fs:        fs,
		path:      path,
		logger:    logger,
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lock: %w", err)
	}

	// O_EXCL loses cleanly to a recorder that won the race since the check.
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		if held, rerr := readLock(fs, path); rerr == nil {
			return nil, held.heldError()
		}
		return nil, errors.ErrArchiveLocked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = fs.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
	}

	logger.Debug("archive lock acquired", "archive", root, "pid", l.PID)
	return l, nil
}

// Release removes the lock file if this process still owns it. Calling it
// again, or on a nil Lock, is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fs == nil {
		return nil
	}
	held, err := readLock(l.fs, l.path)
	if err != nil || held.PID != l.PID {
		return nil
	}
	if err := l.fs.Remove(l.path); err != nil {
		return err
	}
	l.logger.Debug("archive lock released", "pid", l.PID)
	return nil
}

func readLock(fs afero.Fs, path string) (*Lock, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var l Lock
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &l, nil
}

// IsLocked returns the archive's lock and whether its holder is alive.
func IsLocked(fs afero.Fs, root string) (*Lock, bool) {
	l, err := readLock(fs, filepath.Join(root, LockFileName))
	if err != nil {
		return nil, false
	}
	return l, processAlive(l.PID)
}
