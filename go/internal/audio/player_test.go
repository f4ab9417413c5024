package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func testManifest() *Manifest {
	return &Manifest{
		AssetDir: "assets",
		Cues: map[string]Cue{
			"inhale": {File: "breath_in.mp3", Length: time.Second},
			"intro":  {Length: 5 * time.Second},
		},
	}
}

func waitFinished(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cue to finish")
	}
	return ""
}

func expectNothing(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected finish %q", s)
	case <-time.After(50 * time.Millisecond):
	}
}

// blockUntilTimers waits for n cue timers to be armed on the fake clock.
func blockUntilTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for timers: %v", err)
	}
}

func TestManifestResolve(t *testing.T) {
	m := testManifest()

	c, err := m.Resolve("inhale")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.File != "assets/breath_in.mp3" || c.Token != "inhale" {
		t.Fatalf("unexpected cue %+v", c)
	}

	c, err = m.Resolve("intro")
	if err != nil || c.File != "assets/intro.mp3" {
		t.Fatalf("expected default file name, got %+v %v", c, err)
	}

	if _, err := m.Resolve("missing"); !errors.Is(err, ErrUnknownCue) {
		t.Fatalf("expected ErrUnknownCue, got %v", err)
	}

	c, err = DefaultManifest().Resolve("hold")
	if err != nil || c.Length != 3*time.Second || c.File != "audio/hold.mp3" {
		t.Fatalf("unexpected default cue %+v %v", c, err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cues.yaml")
	data := []byte("asset_dir: sounds\ncues:\n  exhale:\n    file: out.mp3\n    length: 1500ms\n")
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := LoadManifest(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c, err := m.Resolve("exhale")
	if err != nil || c.Length != 1500*time.Millisecond || c.File != "sounds/out.mp3" {
		t.Fatalf("unexpected cue %+v %v", c, err)
	}
}

func TestPlayFinishesAfterCueLength(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var started []string
	p := NewClockPlayer(testManifest(), WithClock(clock), WithOnCue(func(c Cue) { started = append(started, c.Token) }))

	finished := make(chan string, 1)
	if err := p.Play("inhale", func() { finished <- "inhale" }); err != nil {
		t.Fatalf("play: %v", err)
	}
	if len(started) != 1 {
		t.Fatalf("expected cue announced, got %v", started)
	}
	if c, ok := p.Playing(); !ok || c.Token != "inhale" {
		t.Fatal("expected inhale playing")
	}

	blockUntilTimers(t, clock, 1)
	clock.Advance(999 * time.Millisecond)
	expectNothing(t, finished)

	clock.Advance(time.Millisecond)
	if got := waitFinished(t, finished); got != "inhale" {
		t.Fatalf("unexpected finish %q", got)
	}
}

func TestPlayReplacesCurrentCue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewClockPlayer(testManifest(), WithClock(clock))

	finished := make(chan string, 2)
	if err := p.Play("intro", func() { finished <- "intro" }); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := p.Play("inhale", func() { finished <- "inhale" }); err != nil {
		t.Fatalf("play: %v", err)
	}

	blockUntilTimers(t, clock, 1)
	clock.Advance(5 * time.Second)
	if got := waitFinished(t, finished); got != "inhale" {
		t.Fatalf("expected only inhale to finish, got %q", got)
	}
	expectNothing(t, finished)
}

func TestPauseResumeKeepsRemainingLength(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewClockPlayer(testManifest(), WithClock(clock))

	finished := make(chan string, 1)
	if err := p.Play("intro", func() { finished <- "intro" }); err != nil {
		t.Fatalf("play: %v", err)
	}
	blockUntilTimers(t, clock, 1)
	clock.Advance(2 * time.Second)

	p.Pause()
	clock.Advance(time.Minute)
	expectNothing(t, finished)

	p.Resume()
	blockUntilTimers(t, clock, 1)
	clock.Advance(2999 * time.Millisecond)
	expectNothing(t, finished)

	clock.Advance(time.Millisecond)
	waitFinished(t, finished)
}

func TestStopAndClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewClockPlayer(testManifest(), WithClock(clock))

	finished := make(chan string, 1)
	if err := p.Play("inhale", func() { finished <- "inhale" }); err != nil {
		t.Fatalf("play: %v", err)
	}
	p.Stop()
	clock.Advance(time.Minute)
	expectNothing(t, finished)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Play("inhale", nil); !errors.Is(err, ErrPlayerClosed) {
		t.Fatalf("expected ErrPlayerClosed, got %v", err)
	}
	if err := p.Play("missing", nil); !errors.Is(err, ErrUnknownCue) {
		t.Fatalf("expected ErrUnknownCue, got %v", err)
	}
}
