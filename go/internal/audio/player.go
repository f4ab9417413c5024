package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var ErrPlayerClosed = errors.New("player closed")

// Player plays audio cues. Playback is fire-and-forget; onFinished, when
// non-nil, runs once if the cue plays to its end.
type Player interface {
	Play(cue string, onFinished func()) error
	Pause()
	Resume()
	Stop()
}

// PlayerOption configures a ClockPlayer.
type PlayerOption func(*ClockPlayer)

// WithClock sets the time source for cue timers.
func WithClock(c clockwork.Clock) PlayerOption {
	return func(p *ClockPlayer) { p.clock = c }
}

// WithOnCue registers a callback for every cue that starts, so a client
// can render the sound itself.
func WithOnCue(fn func(Cue)) PlayerOption {
	return func(p *ClockPlayer) { p.onCue = fn }
}

type playback struct {
	cue        Cue
	onFinished func()
	timer      clockwork.Timer
	done       chan struct{}
	startedAt  time.Time
	remaining  time.Duration
}

// ClockPlayer tracks cue playback against a clock. It does not decode
// audio; clients are told which clip to play through WithOnCue, and the
// player times the clip so onFinished fires when the clip would end.
//
// One player belongs to one session. Close releases it.
type ClockPlayer struct {
	manifest *Manifest
	clock    clockwork.Clock
	onCue    func(Cue)

	mu      sync.Mutex
	current *playback
	paused  bool
	closed  bool
}

// NewClockPlayer creates a player resolving cues through manifest.
func NewClockPlayer(manifest *Manifest, opts ...PlayerOption) *ClockPlayer {
	p := &ClockPlayer{
		manifest: manifest,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play stops whatever is playing and starts token.
func (p *ClockPlayer) Play(token string, onFinished func()) error {
	cue, err := p.manifest.Resolve(token)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	p.cancel()
	pb := &playback{cue: cue, onFinished: onFinished, remaining: cue.Length}
	p.current = pb
	p.paused = false
	p.start(pb)
	p.mu.Unlock()

	log.Debug().
		Str("cue", cue.Token).
		Str("file", cue.File).
		Dur("length", cue.Length).
		Msg("cue started")

	if p.onCue != nil {
		p.onCue(cue)
	}
	return nil
}

// Pause holds the current cue where it is.
func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	pb := p.current
	if pb == nil || p.paused {
		return
	}
	stopAndDrainTimer(pb.timer)
	close(pb.done)
	pb.remaining -= p.clock.Since(pb.startedAt)
	if pb.remaining < 0 {
		pb.remaining = 0
	}
	p.paused = true
}

// Resume continues a paused cue for its remaining length.
func (p *ClockPlayer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || !p.paused {
		return
	}
	p.paused = false
	p.start(p.current)
}

// Stop drops the current cue without calling its onFinished.
func (p *ClockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
}

// Close stops playback and rejects further Play calls.
func (p *ClockPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel()
	p.closed = true
	return nil
}

// Playing reports the cue currently sounding, if any.
func (p *ClockPlayer) Playing() (Cue, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.paused {
		return Cue{}, false
	}
	return p.current.cue, true
}

// start arms pb's timer for its remaining length. Caller holds p.mu.
func (p *ClockPlayer) start(pb *playback) {
	pb.startedAt = p.clock.Now()
	pb.timer = p.clock.NewTimer(pb.remaining)
	pb.done = make(chan struct{})

	go func(t clockwork.Timer, done <-chan struct{}) {
		select {
		case <-t.Chan():
			p.finish(pb)
		case <-done:
		}
	}(pb.timer, pb.done)
}

func (p *ClockPlayer) finish(pb *playback) {
	p.mu.Lock()
	if p.current != pb || p.paused {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	log.Debug().Str("cue", pb.cue.Token).Msg("cue finished")
	if pb.onFinished != nil {
		pb.onFinished()
	}
}

// cancel drops the current playback. Caller holds p.mu.
func (p *ClockPlayer) cancel() {
	pb := p.current
	if pb == nil {
		return
	}
	if !p.paused {
		stopAndDrainTimer(pb.timer)
		close(pb.done)
	}
	p.current = nil
	p.paused = false
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
