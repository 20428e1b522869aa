// Package session manages the on-disk session archive: one directory per
// day, one numbered directory per recording.
//
//	sessions_archive/
//	  2024_05_01/
//	    Session_1_SYNTH/
//	      raw_data.csv
//	      session.yaml
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/datafile"
	"github.com/Iron-Ham/eegrec/internal/errors"
)

const (
	// DefaultArchiveDir is the archive directory name relative to the working directory.
	DefaultArchiveDir = "sessions_archive"
	// MetadataFileName is the per-session metadata document.
	MetadataFileName = "session.yaml"
	// DayLayout formats the per-day directory name.
	DayLayout = "2006_01_02"
	// SyntheticSuffix marks sessions recorded from the synthetic board.
	SyntheticSuffix = "_SYNTH"
)

// Session is a created recording directory. It is never modified after Create.
type Session struct {
	ID        string
	Name      string
	Date      string
	Index     int
	Synthetic bool
	Dir       string
	Created   time.Time
}

// DataPath returns the path of the session's CSV file.
func (s *Session) DataPath() string {
	return filepath.Join(s.Dir, datafile.FileName)
}

// MetadataPath returns the path of the session's metadata file.
func (s *Session) MetadataPath() string {
	return filepath.Join(s.Dir, MetadataFileName)
}

// Archive is a session archive rooted at a directory.
type Archive struct {
	fs   afero.Fs
	root string
}

// NewArchive returns an archive rooted at root on fs.
func NewArchive(fs afero.Fs, root string) *Archive {
	return &Archive{fs: fs, root: root}
}

// Root returns the archive root directory.
func (a *Archive) Root() string { return a.root }

// Fs returns the filesystem the archive lives on.
func (a *Archive) Fs() afero.Fs { return a.fs }

// DayName formats t as a day directory name.
func DayName(t time.Time) string {
	return t.Format(DayLayout)
}

// DayDir returns the directory holding the sessions recorded on t's date.
func (a *Archive) DayDir(t time.Time) string {
	return filepath.Join(a.root, DayName(t))
}

// SessionName builds the directory name for the index-th session of a day.
func SessionName(index int, synthetic bool) string {
	name := fmt.Sprintf("Session_%d", index)
	if synthetic {
		name += SyntheticSuffix
	}
	return name
}

// Create allocates the next session directory for now's date. The ordinal is
// one more than the number of directories already present for the day. The
// session directory itself is created non-recursively, so a name collision
// fails instead of reusing an existing directory.
func (a *Archive) Create(now time.Time, synthetic bool) (*Session, error) {
	dayDir := a.DayDir(now)
	if err := a.fs.MkdirAll(dayDir, 0755); err != nil {
		return nil, errors.NewSessionError("failed to create day directory", err).WithSessionDir(dayDir)
	}

	existing, err := a.countSessionDirs(dayDir)
	if err != nil {
		return nil, errors.NewSessionError("failed to list day directory", err).WithSessionDir(dayDir)
	}

	index := existing + 1
	name := SessionName(index, synthetic)
	dir := filepath.Join(dayDir, name)

	if err := a.fs.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			cause := errors.NewAlreadyExistsError("session", name).WithCause(err)
			return nil, errors.NewSessionError("failed to create session directory", cause).WithSessionDir(dir)
		}
		return nil, errors.NewSessionError("failed to create session directory", err).WithSessionDir(dir)
	}

	return &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Date:      DayName(now),
		Index:     index,
		Synthetic: synthetic,
		Dir:       dir,
		Created:   now,
	}, nil
}

// countSessionDirs counts visible subdirectories of dayDir.
func (a *Archive) countSessionDirs(dayDir string) (int, error) {
	entries, err := afero.ReadDir(a.fs, dayDir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n, nil
}
