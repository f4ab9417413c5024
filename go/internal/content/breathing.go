package content

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
)

// Breathing cue tokens. CueComplete plays when a session runs to its end.
const (
	CueInhale   = "inhale"
	CueHold     = "hold"
	CueExhale   = "exhale"
	CueComplete = "complete"
)

var ErrPatternOutOfRange = errors.New("breathing pattern out of range")

// Pattern describes one breathing cycle and how many times it repeats.
type Pattern struct {
	ID      string        `json:"id" yaml:"id"`
	Title   string        `json:"title" yaml:"title"`
	Inhale  time.Duration `json:"inhale" yaml:"inhale"`
	HoldIn  time.Duration `json:"hold_in" yaml:"hold_in"`
	Exhale  time.Duration `json:"exhale" yaml:"exhale"`
	HoldOut time.Duration `json:"hold_out" yaml:"hold_out"`
	Cycles  int           `json:"cycles" yaml:"cycles"`
	Tip     string        `json:"tip,omitempty" yaml:"tip"`
}

// PatternSettings are the user-adjustable values of the custom pattern.
type PatternSettings struct {
	Inhale  time.Duration `json:"inhale"`
	HoldIn  time.Duration `json:"hold_in"`
	Exhale  time.Duration `json:"exhale"`
	HoldOut time.Duration `json:"hold_out"`
	Cycles  int           `json:"cycles"`
}

// Custom pattern bounds, matching the settings sliders.
var (
	InhaleRange = [2]time.Duration{1 * time.Second, 10 * time.Second}
	HoldRange   = [2]time.Duration{0, 10 * time.Second}
	ExhaleRange = [2]time.Duration{1 * time.Second, 10 * time.Second}
)

const (
	CyclesMin = 1
	CyclesMax = 12
	CustomID  = "custom"
)

// CycleDuration is the length of one inhale/hold/exhale/hold cycle.
func (p Pattern) CycleDuration() time.Duration {
	return p.Inhale + p.HoldIn + p.Exhale + p.HoldOut
}

// Session expands the pattern into an explicit phase list, one entry per
// step per cycle. Zero-length holds are left out.
func (p Pattern) Session() (phasetimer.Session, error) {
	steps := []phasetimer.Phase{
		{ID: "inhale", Name: "Inhale", Duration: p.Inhale, Cue: CueInhale},
		{ID: "hold_in", Name: "Hold", Duration: p.HoldIn, Cue: CueHold},
		{ID: "exhale", Name: "Exhale", Duration: p.Exhale, Cue: CueExhale},
		{ID: "hold_out", Name: "Hold (after exhale)", Duration: p.HoldOut, Cue: CueHold},
	}

	var phases []phasetimer.Phase
	for c := 1; c <= p.Cycles; c++ {
		for _, step := range steps {
			if step.Duration <= 0 {
				continue
			}
			step.ID = fmt.Sprintf("%s_%d", step.ID, c)
			phases = append(phases, step)
		}
	}

	s, err := phasetimer.NewSession(phases)
	if err != nil {
		return phasetimer.Session{}, fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	return s, nil
}

// WithSettings returns the custom pattern with settings applied, after
// checking every value against its bound.
func (p Pattern) WithSettings(s PatternSettings) (Pattern, error) {
	checks := []struct {
		name  string
		value time.Duration
		rng   [2]time.Duration
	}{
		{"inhale", s.Inhale, InhaleRange},
		{"hold_in", s.HoldIn, HoldRange},
		{"exhale", s.Exhale, ExhaleRange},
		{"hold_out", s.HoldOut, HoldRange},
	}
	for _, c := range checks {
		if c.value < c.rng[0] || c.value > c.rng[1] {
			return Pattern{}, fmt.Errorf("%w: %s %s not in [%s, %s]", ErrPatternOutOfRange, c.name, c.value, c.rng[0], c.rng[1])
		}
	}
	if s.Cycles < CyclesMin || s.Cycles > CyclesMax {
		return Pattern{}, fmt.Errorf("%w: cycles %d not in [%d, %d]", ErrPatternOutOfRange, s.Cycles, CyclesMin, CyclesMax)
	}

	p.Inhale, p.HoldIn, p.Exhale, p.HoldOut, p.Cycles = s.Inhale, s.HoldIn, s.Exhale, s.HoldOut, s.Cycles
	return p, nil
}

// Patterns is the built-in breathing table.
var Patterns = map[string]Pattern{
	"hrv": {
		ID:      "hrv",
		Title:   "HRV breathing",
		Inhale:  4000 * time.Millisecond,
		HoldIn:  2000 * time.Millisecond,
		Exhale:  4000 * time.Millisecond,
		HoldOut: 0,
		Cycles:  6,
		Tip: "Heart-rate-variability breathing uses a steady 4-2-4 rhythm to raise vagal tone " +
			"and balance the autonomic nervous system. Useful before work or study, when stress " +
			"builds up, or to settle an anxious moment. Practice daily.",
	},
	"box": {
		ID:      "box",
		Title:   "Box breathing",
		Inhale:  4000 * time.Millisecond,
		HoldIn:  4000 * time.Millisecond,
		Exhale:  4000 * time.Millisecond,
		HoldOut: 4000 * time.Millisecond,
		Cycles:  4,
		Tip: "Four equal sides: inhale 4s, hold 4s, exhale 4s, hold 4s. Calms racing thoughts " +
			"and lowers heart rate. Good before a talk or a hard meeting, or when sleep will not come.",
	},
	"478": {
		ID:      "478",
		Title:   "4-7-8 breathing",
		Inhale:  4000 * time.Millisecond,
		HoldIn:  7000 * time.Millisecond,
		Exhale:  8000 * time.Millisecond,
		HoldOut: 0,
		Cycles:  3,
		Tip: "Inhale quietly through the nose for 4s, hold for 7s, exhale through the mouth for 8s. " +
			"The long exhale switches on the parasympathetic system. Especially effective before sleep; " +
			"light dizziness at first is normal.",
	},
	CustomID: {
		ID:      CustomID,
		Title:   "Custom breathing",
		Inhale:  4000 * time.Millisecond,
		HoldIn:  2000 * time.Millisecond,
		Exhale:  4000 * time.Millisecond,
		HoldOut: 0,
		Cycles:  6,
		Tip: "Set your own rhythm. Inhale 1-10s, hold 0-10s, exhale 1-10s, hold after exhale 0-10s, " +
			"1-12 cycles. Longer exhales relax; longer inhales energise.",
	},
}
