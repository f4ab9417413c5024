package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types published for every session.
const (
	TypeSessionStarted   = "SessionStarted"
	TypePhaseChanged     = "PhaseChanged"
	TypeSessionProgress  = "SessionProgress"
	TypeCueStarted       = "CueStarted"
	TypeSessionPaused    = "SessionPaused"
	TypeSessionResumed   = "SessionResumed"
	TypeSessionCompleted = "SessionCompleted"
	TypeSessionStopped   = "SessionStopped"
)

// Event is the envelope shared by the WebSocket gateway and the message bus.
type Event struct {
	ID        string          `json:"eventId"`
	Type      string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New marshals payload into an envelope with a fresh event ID.
func New(sessionID uuid.UUID, eventType string, payload any, at time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sessionID.String(),
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	Kind      string    `json:"kind"`
	ProgramID string    `json:"program_id"`
	Title     string    `json:"title"`
	Phases    int       `json:"phases"`
	TotalMs   int64     `json:"total_ms"`
	Total     string    `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// PhaseChangedPayload is the payload for a PhaseChanged event
type PhaseChangedPayload struct {
	Index      int    `json:"index"`
	PhaseID    string `json:"phase_id"`
	Name       string `json:"name"`
	Cue        string `json:"cue"`
	DurationMs int64  `json:"duration_ms"`
	OffsetMs   int64  `json:"offset_ms"`
	Countdown  string `json:"countdown"`
}

// SessionProgressPayload is published whenever the displayed countdown
// second changes.
type SessionProgressPayload struct {
	Index            int     `json:"index"`
	PhaseID          string  `json:"phase_id"`
	PhaseRemainingMs int64   `json:"phase_remaining_ms"`
	TotalRemainingMs int64   `json:"total_remaining_ms"`
	Progress         float64 `json:"progress"`
	Countdown        string  `json:"countdown"`
	TotalRemaining   string  `json:"total_remaining"`
}

// CueStartedPayload tells clients which clip to play.
type CueStartedPayload struct {
	Cue      string `json:"cue"`
	File     string `json:"file"`
	LengthMs int64  `json:"length_ms"`
}

// SessionPausedPayload is the payload for a SessionPaused event
type SessionPausedPayload struct {
	PausedAt time.Time `json:"paused_at"`
	Progress float64   `json:"progress"`
}

// SessionResumedPayload is the payload for a SessionResumed event
type SessionResumedPayload struct {
	ResumedAt time.Time `json:"resumed_at"`
}

// SessionCompletedPayload is the payload for a SessionCompleted event
type SessionCompletedPayload struct {
	CompletedAt time.Time `json:"completed_at"`
	DurationSec int       `json:"duration_sec"`
	Duration    string    `json:"duration"`
}

// SessionStoppedPayload is the payload for a SessionStopped event
type SessionStoppedPayload struct {
	StoppedAt time.Time `json:"stopped_at"`
	Progress  float64   `json:"progress"`
	Reason    string    `json:"reason"`
}
