package phasetimer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is the period of the built-in tick source.
const DefaultTickInterval = 100 * time.Millisecond

// Snapshot is a consistent read of the timer state.
type Snapshot struct {
	Running        bool          `json:"running"`
	Paused         bool          `json:"paused"`
	Index          int           `json:"index"`
	Phase          Phase         `json:"phase"`
	PhaseElapsed   time.Duration `json:"phase_elapsed"`
	PhaseRemaining time.Duration `json:"phase_remaining"`
	TotalElapsed   time.Duration `json:"total_elapsed"`
	TotalRemaining time.Duration `json:"total_remaining"`
	Total          time.Duration `json:"total"`
	Progress       float64       `json:"progress"`
}

// Option configures a Timer.
type Option func(*Timer)

// WithOnPhaseChange registers the callback invoked for every phase entered,
// including phase 0 on Start.
func WithOnPhaseChange(fn func(phase Phase, index int)) Option {
	return func(t *Timer) { t.onPhaseChange = fn }
}

// WithOnComplete registers the callback invoked once when the last phase ends.
func WithOnComplete(fn func()) Option {
	return func(t *Timer) { t.onComplete = fn }
}

// WithOnTick registers a callback that receives a snapshot after every
// accepted tick.
func WithOnTick(fn func(Snapshot)) Option {
	return func(t *Timer) { t.onTick = fn }
}

// WithClock sets the time source. In tests, a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// WithTickInterval sets the built-in tick period. A non-positive interval
// disables the built-in source; the caller then drives the timer with Tick.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

// Timer walks a Session phase by phase on a virtual clock.
//
// All state is guarded by one mutex. Callbacks run after the mutex is
// released, in the order their transitions happened, so they may query the
// timer or call Stop.
type Timer struct {
	session  Session
	clock    clockwork.Clock
	interval time.Duration

	onPhaseChange func(Phase, int)
	onComplete    func()
	onTick        func(Snapshot)

	mu           sync.Mutex
	running      bool
	paused       bool
	index        int
	phaseElapsed time.Duration
	totalElapsed time.Duration

	// gen changes on every Start, Stop and completion; a tick carrying an
	// older generation is dropped.
	gen      uint64
	lastTick time.Time

	// epoch changes on Start and Stop only. Callbacks queued under an older
	// epoch are dropped, so nothing from a stopped run reaches the caller.
	epoch  uint64
	ticker clockwork.Ticker
	stopCh chan struct{}
}

// New creates a stopped timer for session. The session must come from
// NewSession.
func New(session Session, opts ...Option) *Timer {
	if session.Len() == 0 {
		panic("phasetimer: New called with an empty session")
	}

	t := &Timer{
		session:  session,
		clock:    clockwork.NewRealClock(),
		interval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins the session at phase 0. It is a no-op while already running.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		log.Debug().Msg("phase timer already running - ignoring start")
		return
	}

	t.reset()
	t.running = true
	t.gen++
	t.epoch++
	gen, epoch := t.gen, t.epoch
	t.lastTick = t.clock.Now()
	calls := t.phaseEntered(nil)
	t.mu.Unlock()

	log.Debug().
		Int("phases", t.session.Len()).
		Dur("total", t.session.Total()).
		Msg("phase timer started")

	t.fire(epoch, calls)

	// Armed after phase 0 is announced so no tick can report a later phase first.
	t.mu.Lock()
	if t.gen == gen && t.running && t.interval > 0 {
		t.arm(gen)
	}
	t.mu.Unlock()
}

// Tick advances the timer by delta. It is ignored while stopped or paused.
func (t *Timer) Tick(delta time.Duration) {
	t.mu.Lock()
	epoch := t.epoch
	calls := t.advance(delta)
	t.mu.Unlock()
	t.fire(epoch, calls)
}

// Pause freezes the elapsed counters. Only valid while running and unpaused.
// With the built-in tick source, the time since the last tick is credited
// first unless it would reach a phase boundary; boundaries are crossed by
// ticks only.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || t.paused {
		log.Debug().Bool("running", t.running).Msg("phase timer not pausable - ignoring pause")
		return
	}
	if t.ticker != nil {
		t.credit(t.clock.Now())
	}
	t.paused = true
}

// Resume continues a paused timer. The next clock delta is measured from now.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || !t.paused {
		log.Debug().Bool("running", t.running).Msg("phase timer not paused - ignoring resume")
		return
	}
	t.paused = false
	t.lastTick = t.clock.Now()
}

// Stop disarms the tick source and resets to phase 0 with zero elapsed time.
// No tick is processed after Stop returns. onComplete is not called.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.disarm()
	t.gen++
	t.epoch++
	t.reset()
}

// Progress returns the completed fraction of the session in [0, 1].
func (t *Timer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress()
}

// Snapshot returns every query value under one lock.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *Timer) CurrentIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

func (t *Timer) CurrentPhase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Phase(t.index)
}

func (t *Timer) PhaseElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phaseElapsed
}

func (t *Timer) PhaseRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Phase(t.index).Duration - t.phaseElapsed
}

func (t *Timer) TotalElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalElapsed
}

func (t *Timer) TotalRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Total() - t.totalElapsed
}

// Total returns the session length.
func (t *Timer) Total() time.Duration { return t.session.Total() }

// Session returns the session the timer walks.
func (t *Timer) Session() Session { return t.session }

// advance applies delta and returns the callbacks owed. Caller holds t.mu.
func (t *Timer) advance(delta time.Duration) []func() {
	if !t.running || t.paused || delta <= 0 {
		return nil
	}

	t.phaseElapsed += delta
	t.totalElapsed += delta

	var calls []func()
	last := t.session.Len() - 1
	for t.phaseElapsed >= t.session.Phase(t.index).Duration {
		overshoot := t.phaseElapsed - t.session.Phase(t.index).Duration

		if t.index == last {
			t.phaseElapsed = t.session.Phase(t.index).Duration
			t.totalElapsed = t.session.Total()
			t.halt()
			calls = t.ticked(calls)
			if t.onComplete != nil {
				calls = append(calls, t.onComplete)
			}
			log.Debug().Dur("total", t.totalElapsed).Msg("phase timer completed")
			return calls
		}

		t.index++
		t.phaseElapsed = overshoot
		calls = t.phaseEntered(calls)
	}

	return t.ticked(calls)
}

// credit adds the time since the last tick while it stays inside the
// current phase. Caller holds t.mu.
func (t *Timer) credit(now time.Time) {
	delta := now.Sub(t.lastTick)
	if delta <= 0 || t.phaseElapsed+delta >= t.session.Phase(t.index).Duration {
		return
	}
	t.phaseElapsed += delta
	t.totalElapsed += delta
	t.lastTick = now
}

// halt ends a run without resetting counters, so the final state stays
// readable after completion. Caller holds t.mu.
func (t *Timer) halt() {
	t.disarm()
	t.gen++
	t.running = false
	t.paused = false
}

// reset restores the initial state. Caller holds t.mu.
func (t *Timer) reset() {
	t.running = false
	t.paused = false
	t.index = 0
	t.phaseElapsed = 0
	t.totalElapsed = 0
}

func (t *Timer) phaseEntered(calls []func()) []func() {
	if t.onPhaseChange == nil {
		return calls
	}
	phase, index := t.session.Phase(t.index), t.index
	fn := t.onPhaseChange
	return append(calls, func() { fn(phase, index) })
}

func (t *Timer) ticked(calls []func()) []func() {
	if t.onTick == nil {
		return calls
	}
	snap := t.snapshot()
	fn := t.onTick
	return append(calls, func() { fn(snap) })
}

func (t *Timer) progress() float64 {
	p := float64(t.totalElapsed) / float64(t.session.Total())
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func (t *Timer) snapshot() Snapshot {
	phase := t.session.Phase(t.index)
	return Snapshot{
		Running:        t.running,
		Paused:         t.paused,
		Index:          t.index,
		Phase:          phase,
		PhaseElapsed:   t.phaseElapsed,
		PhaseRemaining: phase.Duration - t.phaseElapsed,
		TotalElapsed:   t.totalElapsed,
		TotalRemaining: t.session.Total() - t.totalElapsed,
		Total:          t.session.Total(),
		Progress:       t.progress(),
	}
}

// fire runs calls in order until a Start or Stop moves the timer past epoch.
func (t *Timer) fire(epoch uint64, calls []func()) {
	for i, call := range calls {
		t.mu.Lock()
		current := t.epoch == epoch
		t.mu.Unlock()
		if !current {
			log.Debug().Int("dropped", len(calls)-i).Msg("phase timer stopped - dropping callbacks")
			return
		}
		call()
	}
}
