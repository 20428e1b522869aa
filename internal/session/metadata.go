package session

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/eegrec/internal/board"
)

// Metadata describes how a session was recorded. It is written once, when
// the session is created.
type Metadata struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Date         string    `yaml:"date"`
	Index        int       `yaml:"index"`
	Synthetic    bool      `yaml:"synthetic"`
	Board        string    `yaml:"board"`
	BoardID      int       `yaml:"board_id"`
	SamplingRate int       `yaml:"sampling_rate"`
	Columns      []string  `yaml:"columns"`
	Created      time.Time `yaml:"created"`
	Host         string    `yaml:"host,omitempty"`
}

// NewMetadata builds the metadata document for s recorded with layout.
func NewMetadata(s *Session, layout board.Layout) *Metadata {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	return &Metadata{
		ID:           s.ID,
		Name:         s.Name,
		Date:         s.Date,
		Index:        s.Index,
		Synthetic:    s.Synthetic,
		Board:        layout.Board.String(),
		BoardID:      int(layout.Board),
		SamplingRate: layout.SamplingRate,
		Columns:      layout.Columns(),
		Created:      s.Created,
		Host:         host,
	}
}

// WriteMetadata writes md to path as YAML.
func WriteMetadata(fs afero.Fs, path string, md *Metadata) error {
	data, err := yaml.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a metadata document.
func ReadMetadata(fs afero.Fs, path string) (*Metadata, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	return &md, nil
}
