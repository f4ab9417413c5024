package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/stillpoint/go/internal/audio"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
	"github.com/mcdev12/stillpoint/go/internal/timefmt"
	"github.com/rs/zerolog/log"
)

// Session is one running exercise: intro cue, timed phases, end cue.
//
// Lock order is s.mu, then the timer or player lock. Timer and player
// callbacks run without their own locks held.
type Session struct {
	id        uuid.UUID
	program   content.Program
	manager   *Manager
	timer     *phasetimer.Timer
	player    audio.Player
	startedAt time.Time

	mu            sync.Mutex
	status        Status
	resumeTo      Status
	startOnResume bool

	// index<<32 | countdown seconds of the last progress event.
	lastProgress atomic.Int64
	// ended is set once the session is stopped or completed. Timer callbacks
	// check it without s.mu because they can run under it.
	ended atomic.Bool
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	status := s.status
	snap := s.timer.Snapshot()
	s.mu.Unlock()

	return State{
		ID:             s.id,
		Kind:           s.program.Kind,
		ProgramID:      s.program.ID,
		Title:          s.program.Title,
		Status:         status,
		StartedAt:      s.startedAt,
		Timer:          snap,
		Countdown:      timefmt.Countdown(snap.PhaseRemaining),
		TotalRemaining: timefmt.MMSS(snap.TotalRemaining),
	}
}

func (s *Session) playIntro() {
	if s.program.IntroCue == "" {
		s.beginTimer()
		return
	}
	if err := s.player.Play(s.program.IntroCue, s.beginTimer); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", s.id.String()).
			Str("cue", s.program.IntroCue).
			Msg("intro cue failed, starting timer")
		s.beginTimer()
	}
}

// beginTimer runs when the intro ends.
func (s *Session) beginTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusIntro:
		s.status = StatusRunning
		s.timer.Start()
	case StatusPaused:
		if s.resumeTo == StatusIntro {
			s.resumeTo = StatusRunning
			s.startOnResume = true
		}
	}
}

func (s *Session) pause() {
	s.mu.Lock()
	switch s.status {
	case StatusIntro:
	case StatusRunning:
		// A timer that already completed is finishing; its callback owns the
		// next transition.
		if !s.timer.IsRunning() {
			s.mu.Unlock()
			return
		}
		s.timer.Pause()
	default:
		s.mu.Unlock()
		log.Debug().Str("session_id", s.id.String()).Str("status", string(s.status)).Msg("session not pausable")
		return
	}
	s.resumeTo = s.status
	s.status = StatusPaused
	s.player.Pause()
	progress := s.timer.Progress()
	s.mu.Unlock()

	log.Info().Str("session_id", s.id.String()).Float64("progress", progress).Msg("session paused")
	s.manager.emit(s.id, events.TypeSessionPaused, events.SessionPausedPayload{
		PausedAt: s.manager.clock.Now(),
		Progress: progress,
	})
}

func (s *Session) resume() {
	s.mu.Lock()
	if s.status != StatusPaused {
		s.mu.Unlock()
		log.Debug().Str("session_id", s.id.String()).Str("status", string(s.status)).Msg("session not paused")
		return
	}
	s.status = s.resumeTo
	s.player.Resume()
	switch {
	case s.startOnResume:
		s.startOnResume = false
		s.timer.Start()
	case s.status == StatusRunning:
		s.timer.Resume()
	}
	s.mu.Unlock()

	log.Info().Str("session_id", s.id.String()).Msg("session resumed")
	s.manager.emit(s.id, events.TypeSessionResumed, events.SessionResumedPayload{
		ResumedAt: s.manager.clock.Now(),
	})
}

func (s *Session) stop(reason string) {
	s.mu.Lock()
	if s.status == StatusCompleted || s.status == StatusStopped {
		s.mu.Unlock()
		return
	}
	progress := s.timer.Progress()
	s.status = StatusStopped
	s.ended.Store(true)
	s.timer.Stop()
	s.player.Stop()
	s.mu.Unlock()

	s.manager.release(s)

	log.Info().
		Str("session_id", s.id.String()).
		Str("reason", reason).
		Float64("progress", progress).
		Msg("session stopped")
	s.manager.emit(s.id, events.TypeSessionStopped, events.SessionStoppedPayload{
		StoppedAt: s.manager.clock.Now(),
		Progress:  progress,
		Reason:    reason,
	})
}

func (s *Session) phaseChanged(phase phasetimer.Phase, index int) {
	if s.ended.Load() {
		return
	}

	log.Debug().
		Str("session_id", s.id.String()).
		Int("index", index).
		Str("phase_id", phase.ID).
		Msg("phase changed")

	s.manager.emit(s.id, events.TypePhaseChanged, events.PhaseChangedPayload{
		Index:      index,
		PhaseID:    phase.ID,
		Name:       phase.Name,
		Cue:        phase.Cue,
		DurationMs: phase.Duration.Milliseconds(),
		OffsetMs:   s.program.Session.Offset(index).Milliseconds(),
		Countdown:  timefmt.Countdown(phase.Duration),
	})

	// A failed cue never holds the session back.
	if phase.Cue != "" {
		if err := s.player.Play(phase.Cue, nil); err != nil {
			log.Warn().
				Err(err).
				Str("session_id", s.id.String()).
				Str("cue", phase.Cue).
				Msg("phase cue failed")
		}
	}
}

func (s *Session) ticked(snap phasetimer.Snapshot) {
	if s.ended.Load() {
		return
	}
	key := int64(snap.Index)<<32 | int64(timefmt.CountdownSeconds(snap.PhaseRemaining))
	if s.lastProgress.Swap(key) == key {
		return
	}

	s.manager.emit(s.id, events.TypeSessionProgress, events.SessionProgressPayload{
		Index:            snap.Index,
		PhaseID:          snap.Phase.ID,
		PhaseRemainingMs: snap.PhaseRemaining.Milliseconds(),
		TotalRemainingMs: snap.TotalRemaining.Milliseconds(),
		Progress:         snap.Progress,
		Countdown:        timefmt.Countdown(snap.PhaseRemaining),
		TotalRemaining:   timefmt.MMSS(snap.TotalRemaining),
	})
}

func (s *Session) timerCompleted() {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.status = StatusFinishing
	s.mu.Unlock()

	if s.program.EndCue == "" {
		s.finish()
		return
	}
	if err := s.player.Play(s.program.EndCue, s.finish); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", s.id.String()).
			Str("cue", s.program.EndCue).
			Msg("end cue failed")
		s.finish()
	}
}

// finish runs once the end cue is over.
func (s *Session) finish() {
	s.mu.Lock()
	if s.status != StatusFinishing {
		s.mu.Unlock()
		return
	}
	s.status = StatusCompleted
	s.ended.Store(true)
	s.mu.Unlock()

	elapsed := s.manager.clock.Since(s.startedAt)
	s.manager.release(s)

	log.Info().
		Str("session_id", s.id.String()).
		Str("program_id", s.program.ID).
		Dur("elapsed", elapsed).
		Msg("session completed")

	s.manager.emit(s.id, events.TypeSessionCompleted, events.SessionCompletedPayload{
		CompletedAt: s.manager.clock.Now(),
		DurationSec: int(elapsed / time.Second),
		Duration:    timefmt.Human(elapsed),
	})
}

func (s *Session) cueStarted(cue audio.Cue) {
	if s.ended.Load() {
		return
	}
	s.manager.emit(s.id, events.TypeCueStarted, events.CueStartedPayload{
		Cue:      cue.Token,
		File:     cue.File,
		LengthMs: cue.Length.Milliseconds(),
	})
}
