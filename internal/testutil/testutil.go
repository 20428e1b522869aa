// Package testutil provides testing utilities for eegrec tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// Epoch is a fixed, arbitrary start time for fake clocks.
var Epoch = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// Clock is a manually advanced time source. It is safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeper records requested sleeps and advances Clock instead of blocking.
// When CancelAfter is n > 0, the n-th sleep calls Cancel and reports the
// context's error, simulating an interrupt arriving mid-sleep.
type Sleeper struct {
	Clock       *Clock
	CancelAfter int
	Cancel      context.CancelFunc

	mu    sync.Mutex
	calls []time.Duration
}

// Sleep implements stream.Sleeper.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.calls = append(s.calls, d)
	n := len(s.calls)
	s.mu.Unlock()

	if s.Clock != nil {
		s.Clock.Advance(d)
	}
	if s.CancelAfter > 0 && n == s.CancelAfter && s.Cancel != nil {
		s.Cancel()
		return ctx.Err()
	}
	return nil
}

// Calls returns the durations passed to Sleep, in order.
func (s *Sleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}

// WriteFiles creates files under root on fs. The files map contains
// slash-separated relative paths to file contents.
func WriteFiles(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		if err := fs.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := afero.WriteFile(fs, fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

// SetupTestArchive creates a temporary archive directory on disk populated
// with files and returns its path. It is removed when the test completes.
func SetupTestArchive(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "sessions_archive")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	WriteFiles(t, afero.NewOsFs(), dir, files)
	return dir
}

// Chdir changes the working directory for the duration of the test.
func Chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir to %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
