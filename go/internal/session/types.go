package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
)

var ErrSessionNotFound = errors.New("session not found")

// Status is where a session is in its lifecycle.
type Status string

const (
	StatusIntro     Status = "intro"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusFinishing Status = "finishing"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

// Request selects the exercise to run.
type Request struct {
	Kind      content.Kind             `json:"kind"`
	ProgramID string                   `json:"program_id"`
	Custom    *content.PatternSettings `json:"custom,omitempty"`
}

// State is a point-in-time view of one session.
type State struct {
	ID             uuid.UUID           `json:"id"`
	Kind           content.Kind        `json:"kind"`
	ProgramID      string              `json:"program_id"`
	Title          string              `json:"title"`
	Status         Status              `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	Timer          phasetimer.Snapshot `json:"timer"`
	Countdown      string              `json:"countdown"`
	TotalRemaining string              `json:"total_remaining"`
}

// Publisher delivers session events somewhere outside the manager.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event *events.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
