package gateway

import (
	"time"

	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/session"
)

// JSON views of the domain types. Durations go over the wire as milliseconds.

// PatternView is a breathing pattern as the client sees it.
type PatternView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	InhaleMs  int64  `json:"inhale_ms"`
	HoldInMs  int64  `json:"hold_in_ms"`
	ExhaleMs  int64  `json:"exhale_ms"`
	HoldOutMs int64  `json:"hold_out_ms"`
	Cycles    int    `json:"cycles"`
	CycleMs   int64  `json:"cycle_ms"`
	Tip       string `json:"tip,omitempty"`
}

// ProgramsResponse is the body of GET /api/programs.
type ProgramsResponse struct {
	Breathing  []PatternView  `json:"breathing"`
	Relax      []content.Mode `json:"relax"`
	Meditation []content.Mode `json:"meditation"`
}

// SettingsRequest carries custom breathing settings in milliseconds.
type SettingsRequest struct {
	InhaleMs  int64 `json:"inhale_ms"`
	HoldInMs  int64 `json:"hold_in_ms"`
	ExhaleMs  int64 `json:"exhale_ms"`
	HoldOutMs int64 `json:"hold_out_ms"`
	Cycles    int   `json:"cycles"`
}

// StartRequest is the body of POST /api/sessions.
type StartRequest struct {
	Kind      string           `json:"kind"`
	ProgramID string           `json:"program_id"`
	Custom    *SettingsRequest `json:"custom,omitempty"`
}

// PhaseView is one phase of a running session.
type PhaseView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Cue        string `json:"cue,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// SessionView is the state of one session.
type SessionView struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	ProgramID        string    `json:"program_id"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	Index            int       `json:"index"`
	Phase            PhaseView `json:"phase"`
	PhaseElapsedMs   int64     `json:"phase_elapsed_ms"`
	PhaseRemainingMs int64     `json:"phase_remaining_ms"`
	TotalElapsedMs   int64     `json:"total_elapsed_ms"`
	TotalRemainingMs int64     `json:"total_remaining_ms"`
	TotalMs          int64     `json:"total_ms"`
	Progress         float64   `json:"progress"`
	Countdown        string    `json:"countdown"`
	TotalRemaining   string    `json:"total_remaining"`
}

func (r StartRequest) toRequest() session.Request {
	req := session.Request{
		Kind:      content.Kind(r.Kind),
		ProgramID: r.ProgramID,
	}
	if r.Custom != nil {
		req.Custom = &content.PatternSettings{
			Inhale:  time.Duration(r.Custom.InhaleMs) * time.Millisecond,
			HoldIn:  time.Duration(r.Custom.HoldInMs) * time.Millisecond,
			Exhale:  time.Duration(r.Custom.ExhaleMs) * time.Millisecond,
			HoldOut: time.Duration(r.Custom.HoldOutMs) * time.Millisecond,
			Cycles:  r.Custom.Cycles,
		}
	}
	return req
}

func newPatternView(p content.Pattern) PatternView {
	return PatternView{
		ID:        p.ID,
		Title:     p.Title,
		InhaleMs:  p.Inhale.Milliseconds(),
		HoldInMs:  p.HoldIn.Milliseconds(),
		ExhaleMs:  p.Exhale.Milliseconds(),
		HoldOutMs: p.HoldOut.Milliseconds(),
		Cycles:    p.Cycles,
		CycleMs:   p.CycleDuration().Milliseconds(),
		Tip:       p.Tip,
	}
}

func newProgramsResponse(l content.Listing) ProgramsResponse {
	resp := ProgramsResponse{
		Breathing:  make([]PatternView, 0, len(l.Breathing)),
		Relax:      l.Relax,
		Meditation: l.Meditation,
	}
	for _, p := range l.Breathing {
		resp.Breathing = append(resp.Breathing, newPatternView(p))
	}
	return resp
}

func newSessionView(s session.State) SessionView {
	t := s.Timer
	return SessionView{
		ID:        s.ID.String(),
		Kind:      string(s.Kind),
		ProgramID: s.ProgramID,
		Title:     s.Title,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		Index:     t.Index,
		Phase: PhaseView{
			ID:         t.Phase.ID,
			Name:       t.Phase.Name,
			Cue:        t.Phase.Cue,
			DurationMs: t.Phase.Duration.Milliseconds(),
		},
		PhaseElapsedMs:   t.PhaseElapsed.Milliseconds(),
		PhaseRemainingMs: t.PhaseRemaining.Milliseconds(),
		TotalElapsedMs:   t.TotalElapsed.Milliseconds(),
		TotalRemainingMs: t.TotalRemaining.Milliseconds(),
		TotalMs:          t.Total.Milliseconds(),
		Progress:         t.Progress,
		Countdown:        s.Countdown,
		TotalRemaining:   s.TotalRemaining,
	}
}
