package content

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
)

// Kind groups exercises the way the app tabs do.
type Kind string

const (
	KindBreathing  Kind = "breathing"
	KindRelax      Kind = "relax"
	KindMeditation Kind = "meditation"
)

var ErrProgramNotFound = errors.New("program not found")

// Program is an exercise ready to hand to a timer.
type Program struct {
	Kind     Kind
	ID       string
	Title    string
	IntroCue string
	EndCue   string
	Session  phasetimer.Session
}

// Listing is the menu the client renders.
type Listing struct {
	Breathing  []Pattern `json:"breathing"`
	Relax      []Mode    `json:"relax"`
	Meditation []Mode    `json:"meditation"`
}

// Catalog holds every pattern, mode and script the service knows about.
type Catalog struct {
	mu       sync.RWMutex
	patterns map[string]Pattern
	modes    map[Kind][]Mode
	scripts  map[Kind]map[string]Script
}

// NewCatalog returns a catalog seeded with the built-in content.
func NewCatalog() *Catalog {
	c := &Catalog{
		patterns: make(map[string]Pattern, len(Patterns)),
		modes: map[Kind][]Mode{
			KindRelax:      append([]Mode(nil), RelaxModes...),
			KindMeditation: append([]Mode(nil), MeditationModes...),
		},
		scripts: map[Kind]map[string]Script{
			KindRelax:      make(map[string]Script, len(RelaxScripts)),
			KindMeditation: {},
		},
	}
	for id, p := range Patterns {
		c.patterns[id] = p
	}
	for id, s := range RelaxScripts {
		c.scripts[KindRelax][id] = s
	}
	return c
}

// AddPattern registers or replaces a breathing pattern.
func (c *Catalog) AddPattern(p Pattern) error {
	if p.ID == "" {
		return fmt.Errorf("add pattern: missing id")
	}
	if _, err := p.Session(); err != nil {
		return fmt.Errorf("add pattern: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns[p.ID] = p
	return nil
}

// AddScript registers or replaces a script and its menu entry.
func (c *Catalog) AddScript(kind Kind, mode Mode, s Script) error {
	if kind != KindRelax && kind != KindMeditation {
		return fmt.Errorf("add script %s: unsupported kind %q", s.ID, kind)
	}
	if _, err := phasetimer.NewSession(s.Phases); err != nil {
		return fmt.Errorf("add script %s: %w", s.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[kind][s.ID] = s

	modes := c.modes[kind]
	for i := range modes {
		if modes[i].ID == mode.ID {
			modes[i] = mode
			return nil
		}
	}
	c.modes[kind] = append(modes, mode)
	return nil
}

// Program resolves an exercise. custom applies only to the custom
// breathing pattern.
func (c *Catalog) Program(kind Kind, id string, custom *PatternSettings) (Program, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch kind {
	case KindBreathing:
		p, ok := c.patterns[id]
		if !ok {
			return Program{}, fmt.Errorf("%w: %s/%s", ErrProgramNotFound, kind, id)
		}
		if custom != nil && id == CustomID {
			var err error
			if p, err = p.WithSettings(*custom); err != nil {
				return Program{}, err
			}
		}
		s, err := p.Session()
		if err != nil {
			return Program{}, err
		}
		return Program{Kind: kind, ID: p.ID, Title: p.Title, EndCue: CueComplete, Session: s}, nil

	case KindRelax, KindMeditation:
		script, ok := c.scripts[kind][id]
		if !ok {
			return Program{}, fmt.Errorf("%w: %s/%s", ErrProgramNotFound, kind, id)
		}
		s, err := phasetimer.NewSession(script.Phases)
		if err != nil {
			return Program{}, fmt.Errorf("script %s: %w", id, err)
		}
		return Program{
			Kind:     kind,
			ID:       script.ID,
			Title:    script.Title,
			IntroCue: script.IntroCue,
			EndCue:   script.EndCue,
			Session:  s,
		}, nil
	}

	return Program{}, fmt.Errorf("%w: unknown kind %q", ErrProgramNotFound, kind)
}

// Listing returns the menu, breathing patterns sorted by ID.
func (c *Catalog) Listing() Listing {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l := Listing{
		Relax:      append([]Mode(nil), c.modes[KindRelax]...),
		Meditation: append([]Mode(nil), c.modes[KindMeditation]...),
	}
	for _, p := range c.patterns {
		l.Breathing = append(l.Breathing, p)
	}
	sort.Slice(l.Breathing, func(i, j int) bool { return l.Breathing[i].ID < l.Breathing[j].ID })
	return l
}
