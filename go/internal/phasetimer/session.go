package phasetimer

import (
	"fmt"
	"time"
)

// Phase is one timed step of a session. Cue names an audio cue that the caller
// resolves; the timer never plays it.
type Phase struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Cue      string        `json:"cue" yaml:"cue"`
}

// Session is a validated, ordered, non-empty list of phases.
type Session struct {
	phases []Phase
	total  time.Duration
}

// InvalidSessionError is returned when a phase list cannot drive a timer.
// Index is the offending phase, or -1 when the list itself is empty.
type InvalidSessionError struct {
	Index  int
	Reason string
}

func (e *InvalidSessionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid session: %s", e.Reason)
	}
	return fmt.Sprintf("invalid session: phase %d: %s", e.Index, e.Reason)
}

// NewSession validates phases and copies them into a Session.
func NewSession(phases []Phase) (Session, error) {
	if len(phases) == 0 {
		return Session{}, &InvalidSessionError{Index: -1, Reason: "no phases"}
	}

	copied := make([]Phase, len(phases))
	var total time.Duration
	for i, p := range phases {
		if p.Duration <= 0 {
			return Session{}, &InvalidSessionError{
				Index:  i,
				Reason: fmt.Sprintf("non-positive duration %s", p.Duration),
			}
		}
		copied[i] = p
		total += p.Duration
	}

	return Session{phases: copied, total: total}, nil
}

// Len returns the number of phases.
func (s Session) Len() int { return len(s.phases) }

// Phase returns the phase at index i.
func (s Session) Phase(i int) Phase { return s.phases[i] }

// Phases returns a copy of the phase list.
func (s Session) Phases() []Phase {
	out := make([]Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Total returns the summed duration of every phase.
func (s Session) Total() time.Duration { return s.total }

// Offset returns how far into the session phase i begins.
func (s Session) Offset(i int) time.Duration {
	var off time.Duration
	for _, p := range s.phases[:i] {
		off += p.Duration
	}
	return off
}
