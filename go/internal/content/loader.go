package content

import (
	"fmt"
	"os"

	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileEntry is a menu entry and its script in one YAML block.
type FileEntry struct {
	Mode     `yaml:",inline"`
	IntroCue string             `yaml:"intro_cue"`
	EndCue   string             `yaml:"end_cue"`
	Phases   []phasetimer.Phase `yaml:"phases"`
}

// File is the layout of an extra-programs YAML file. Durations are Go
// duration strings such as "4s" or "1m30s".
type File struct {
	Patterns   []Pattern   `yaml:"patterns"`
	Relax      []FileEntry `yaml:"relax"`
	Meditation []FileEntry `yaml:"meditation"`
}

// LoadFile reads and parses a programs file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read programs file: %w", err)
	}
	return ParseFile(data)
}

// LoadCatalog returns the built-in catalog with the programs in path merged
// in. An empty path yields the built-in catalog alone.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}

	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Merge(f); err != nil {
		return nil, fmt.Errorf("failed to merge %s: %w", path, err)
	}
	return c, nil
}

// ParseFile parses programs YAML.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse programs file: %w", err)
	}
	return &f, nil
}

// Merge adds every program in f to the catalog. It stops at the first
// invalid entry.
func (c *Catalog) Merge(f *File) error {
	for _, p := range f.Patterns {
		if err := c.AddPattern(p); err != nil {
			return err
		}
	}

	groups := []struct {
		kind    Kind
		entries []FileEntry
	}{
		{KindRelax, f.Relax},
		{KindMeditation, f.Meditation},
	}
	for _, g := range groups {
		for _, e := range g.entries {
			script := Script{
				ID:       e.ID,
				Title:    e.Title,
				IntroCue: e.IntroCue,
				EndCue:   e.EndCue,
				Phases:   e.Phases,
			}
			if err := c.AddScript(g.kind, e.Mode, script); err != nil {
				return err
			}
		}
	}

	log.Info().
		Int("patterns", len(f.Patterns)).
		Int("relax", len(f.Relax)).
		Int("meditation", len(f.Meditation)).
		Msg("merged programs file")
	return nil
}
