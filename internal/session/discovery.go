package session

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/eegrec/internal/datafile"
	"github.com/Iron-Ham/eegrec/internal/errors"
)

var (
	dayDirRegex     = regexp.MustCompile(`^\d{4}_\d{2}_\d{2}$`)
	sessionDirRegex = regexp.MustCompile(`^Session_(\d+)(_SYNTH)?$`)
)

// Info contains summary information about a recorded session.
type Info struct {
	Name      string
	Date      string
	Index     int
	Synthetic bool
	Dir       string
	// Rows is the number of data lines in raw_data.csv, or -1 when the file
	// is missing or unreadable.
	Rows     int
	Metadata *Metadata
}

// Path returns "<date>/<name>".
func (i *Info) Path() string {
	return i.Date + "/" + i.Name
}

// List returns every session in the archive ordered by date, then index.
// A missing archive yields no sessions.
func (a *Archive) List() ([]*Info, error) {
	days, err := afero.ReadDir(a.fs, a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []*Info
	for _, day := range days {
		if !day.IsDir() || !dayDirRegex.MatchString(day.Name()) {
			continue
		}
		dayDir := filepath.Join(a.root, day.Name())
		entries, err := afero.ReadDir(a.fs, dayDir)
		if err != nil {
			// Skip days we can't read
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			m := sessionDirRegex.FindStringSubmatch(e.Name())
			if m == nil {
				continue
			}
			index, _ := strconv.Atoi(m[1])
			sessions = append(sessions, a.info(day.Name(), e.Name(), index, m[2] != ""))
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		return sessions[i].Index < sessions[j].Index
	})
	return sessions, nil
}

func (a *Archive) info(date, name string, index int, synthetic bool) *Info {
	dir := filepath.Join(a.root, date, name)
	info := &Info{
		Name:      name,
		Date:      date,
		Index:     index,
		Synthetic: synthetic,
		Dir:       dir,
		Rows:      -1,
	}
	if n, err := datafile.CountRows(a.fs, filepath.Join(dir, datafile.FileName)); err == nil {
		info.Rows = n
	}
	if md, err := ReadMetadata(a.fs, filepath.Join(dir, MetadataFileName)); err == nil {
		info.Metadata = md
	}
	return info
}

// Latest returns the most recent session in the archive.
func (a *Archive) Latest() (*Info, error) {
	sessions, err := a.List()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, errors.NewNotFoundError("session", "latest")
	}
	return sessions[len(sessions)-1], nil
}

// Filter keeps the sessions matching a glob pattern. Patterns containing a
// slash match "<date>/<name>"; others match the session name alone. An
// empty pattern keeps everything.
func Filter(sessions []*Info, pattern string) ([]*Info, error) {
	if pattern == "" {
		return sessions, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.NewValidationError("invalid session pattern").
			WithField("match").WithValue(pattern).WithCause(err)
	}

	withDate := strings.Contains(pattern, "/")
	var out []*Info
	for _, s := range sessions {
		subject := s.Name
		if withDate {
			subject = s.Path()
		}
		if g.Match(subject) {
			out = append(out, s)
		}
	}
	return out, nil
}
