package phasetimer

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// arm starts the periodic tick source for generation gen. Caller holds t.mu.
func (t *Timer) arm(gen uint64) {
	ticker := t.clock.NewTicker(t.interval)
	stop := make(chan struct{})
	t.ticker = ticker
	t.stopCh = stop

	go t.run(gen, ticker, stop)

	log.Debug().
		Dur("interval", t.interval).
		Uint64("generation", gen).
		Msg("phase timer tick source armed")
}

// disarm stops the tick source. It never waits on the tick goroutine; the
// generation bump done by every caller is what keeps late ticks out.
// Caller holds t.mu.
func (t *Timer) disarm() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.stopCh)
	t.ticker = nil
	t.stopCh = nil
}

func (t *Timer) run(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.Chan():
			t.handleTick(gen, now)
		}
	}
}

// handleTick turns a clock reading into a delta since the last accepted tick
// or resume, so irregular delivery never drifts the phase boundaries.
func (t *Timer) handleTick(gen uint64, now time.Time) {
	t.mu.Lock()
	if gen != t.gen || t.paused {
		t.mu.Unlock()
		return
	}

	delta := now.Sub(t.lastTick)
	if delta <= 0 {
		t.mu.Unlock()
		return
	}
	t.lastTick = now
	epoch := t.epoch
	calls := t.advance(delta)
	t.mu.Unlock()

	t.fire(epoch, calls)
}
