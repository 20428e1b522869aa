package session

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/datafile"
)

// DefaultWatchDebounce collapses the bursts of write events a single append
// produces.
const DefaultWatchDebounce = 100 * time.Millisecond

// Watcher follows a session directory and reports the row count of its data
// file whenever it changes. Watching requires a real filesystem.
type Watcher struct {
	watcher  *fsnotify.Watcher
	fs       afero.Fs
	dataPath string
	debounce time.Duration
	rows     int
}

// NewWatcher starts watching the session directory dir.
func NewWatcher(dir string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory rather than the file so a data file created after
	// the watch starts is still seen.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  watcher,
		fs:       afero.NewOsFs(),
		dataPath: filepath.Join(dir, datafile.FileName),
		debounce: DefaultWatchDebounce,
		rows:     -1,
	}, nil
}

// SetDebounce changes the quiet period before a change is reported.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run reports the current row count, then every change to it, until ctx is
// done or the watcher fails. Cancellation returns nil.
func (w *Watcher) Run(ctx context.Context, onChange func(rows int)) error {
	w.check(onChange)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != w.dataPath || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.check(onChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) check(onChange func(rows int)) {
	n, err := datafile.CountRows(w.fs, w.dataPath)
	if err != nil {
		return
	}
	if n != w.rows {
		w.rows = n
		onChange(n)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
