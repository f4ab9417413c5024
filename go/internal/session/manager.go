package session

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/stillpoint/go/internal/audio"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
	"github.com/mcdev12/stillpoint/go/internal/timefmt"
	"github.com/rs/zerolog/log"
)

const (
	eventQueueSize = 1024
	publishTimeout = 5 * time.Second
)

// PlayerFactory builds the audio player owned by one session. onCue must be
// called for every cue the player starts.
type PlayerFactory func(onCue func(audio.Cue)) audio.Player

// ClockPlayers builds ClockPlayers that time cues from manifest.
func ClockPlayers(manifest *audio.Manifest, clock clockwork.Clock) PlayerFactory {
	return func(onCue func(audio.Cue)) audio.Player {
		return audio.NewClockPlayer(manifest, audio.WithClock(clock), audio.WithOnCue(onCue))
	}
}

// Config tunes a Manager. Zero values fall back to defaults.
type Config struct {
	Clock        clockwork.Clock
	TickInterval time.Duration
	NewPlayer    PlayerFactory
}

// Manager runs guided sessions. Each session owns one timer and one audio
// player, both created at Start and released when the session ends.
type Manager struct {
	catalog      *content.Catalog
	publisher    Publisher
	clock        clockwork.Clock
	tickInterval time.Duration
	newPlayer    PlayerFactory

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	// Callbacks fire on timer and player goroutines; events are queued so a
	// slow publisher never stalls a tick.
	eventCh chan *events.Event
}

// NewManager creates a session manager.
func NewManager(catalog *content.Catalog, publisher Publisher, cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = phasetimer.DefaultTickInterval
	}
	if cfg.NewPlayer == nil {
		cfg.NewPlayer = ClockPlayers(audio.DefaultManifest(), cfg.Clock)
	}

	return &Manager{
		catalog:      catalog,
		publisher:    publisher,
		clock:        cfg.Clock,
		tickInterval: cfg.TickInterval,
		newPlayer:    cfg.NewPlayer,
		sessions:     make(map[uuid.UUID]*Session),
		eventCh:      make(chan *events.Event, eventQueueSize),
	}
}

// Run publishes queued events until ctx is done, then stops every session.
func (m *Manager) Run(ctx context.Context) error {
	log.Info().Msg("session manager started")

	for {
		select {
		case <-ctx.Done():
			m.stopAll("shutdown")
			m.drain()
			log.Info().Msg("session manager shut down")
			return nil
		case event := <-m.eventCh:
			m.publish(event)
		}
	}
}

// Start resolves the program and begins a session.
func (m *Manager) Start(ctx context.Context, req Request) (State, error) {
	program, err := m.catalog.Program(req.Kind, req.ProgramID, req.Custom)
	if err != nil {
		return State{}, fmt.Errorf("resolve program: %w", err)
	}

	s := &Session{
		id:        uuid.New(),
		program:   program,
		manager:   m,
		startedAt: m.clock.Now(),
		status:    StatusIntro,
	}
	s.player = m.newPlayer(s.cueStarted)
	s.timer = phasetimer.New(program.Session,
		phasetimer.WithClock(m.clock),
		phasetimer.WithTickInterval(m.tickInterval),
		phasetimer.WithOnPhaseChange(s.phaseChanged),
		phasetimer.WithOnTick(s.ticked),
		phasetimer.WithOnComplete(s.timerCompleted),
	)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	log.Info().
		Str("session_id", s.id.String()).
		Str("kind", string(program.Kind)).
		Str("program_id", program.ID).
		Int("phases", program.Session.Len()).
		Dur("total", program.Session.Total()).
		Msg("session started")

	m.emit(s.id, events.TypeSessionStarted, events.SessionStartedPayload{
		Kind:      string(program.Kind),
		ProgramID: program.ID,
		Title:     program.Title,
		Phases:    program.Session.Len(),
		TotalMs:   program.Session.Total().Milliseconds(),
		Total:     timefmt.Human(program.Session.Total()),
		StartedAt: s.startedAt,
	})

	s.playIntro()
	return s.State(), nil
}

// Pause holds the timer and the current cue.
func (m *Manager) Pause(ctx context.Context, id uuid.UUID) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	s.pause()
	return s.State(), nil
}

// Resume continues a paused session.
func (m *Manager) Resume(ctx context.Context, id uuid.UUID) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	s.resume()
	return s.State(), nil
}

// Stop ends a session early. onComplete is never reached.
func (m *Manager) Stop(ctx context.Context, id uuid.UUID) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	state := s.State()
	s.stop("user")
	state.Status = StatusStopped
	return state, nil
}

// Get returns the state of an active session.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (State, error) {
	s, err := m.get(id)
	if err != nil {
		return State{}, err
	}
	return s.State(), nil
}

// List returns every active session, oldest first.
func (m *Manager) List(ctx context.Context) []State {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	states := make([]State, 0, len(sessions))
	for _, s := range sessions {
		states = append(states, s.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].StartedAt.Before(states[j].StartedAt) })
	return states
}

func (m *Manager) get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// release drops a finished session and frees its player.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()

	if c, ok := s.player.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("session_id", s.id.String()).Msg("failed to close audio player")
		}
	}
}

func (m *Manager) stopAll(reason string) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.stop(reason)
	}
}

// emit queues an event without blocking the caller.
func (m *Manager) emit(id uuid.UUID, eventType string, payload any) {
	event, err := events.New(id, eventType, payload, m.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	select {
	case m.eventCh <- event:
	default:
		log.Warn().
			Str("session_id", id.String()).
			Str("event_type", eventType).
			Msg("event queue full, dropping event")
	}
}

func (m *Manager) publish(event *events.Event) {
	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("session_id", event.SessionID).
			Msg("failed to publish session event")
	}
}

// drain publishes whatever is still queued.
func (m *Manager) drain() {
	for {
		select {
		case event := <-m.eventCh:
			m.publish(event)
		default:
			return
		}
	}
}
