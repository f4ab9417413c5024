package audio

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrUnknownCue = errors.New("unknown cue")

// Cue is a playable clip.
type Cue struct {
	Token  string        `json:"token" yaml:"-"`
	File   string        `json:"file" yaml:"file"`
	Length time.Duration `json:"length" yaml:"length"`
}

// Manifest maps cue tokens to clips. When DefaultLength is set, tokens not
// listed resolve to "<AssetDir>/<token>.mp3" with that length.
type Manifest struct {
	AssetDir      string         `yaml:"asset_dir"`
	DefaultLength time.Duration  `yaml:"default_length"`
	Cues          map[string]Cue `yaml:"cues"`
}

// DefaultManifest resolves every token to a three second clip.
func DefaultManifest() *Manifest {
	return &Manifest{
		AssetDir:      "audio",
		DefaultLength: 3 * time.Second,
		Cues:          map[string]Cue{},
	}
}

// LoadManifest reads a YAML cue manifest.
func LoadManifest(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read cue manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse cue manifest: %w", err)
	}
	for token, c := range m.Cues {
		if c.Length <= 0 {
			return nil, fmt.Errorf("cue %s: length must be positive", token)
		}
	}
	return &m, nil
}

// Resolve looks up token.
func (m *Manifest) Resolve(token string) (Cue, error) {
	if c, ok := m.Cues[token]; ok {
		c.Token = token
		if c.File == "" {
			c.File = token + ".mp3"
		}
		c.File = path.Join(m.AssetDir, c.File)
		return c, nil
	}
	if m.DefaultLength > 0 && token != "" {
		return Cue{
			Token:  token,
			File:   path.Join(m.AssetDir, token+".mp3"),
			Length: m.DefaultLength,
		}, nil
	}
	return Cue{}, fmt.Errorf("%w: %q", ErrUnknownCue, token)
}
