package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/stillpoint/go/internal/audio"
	"github.com/mcdev12/stillpoint/go/internal/config"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/eventbus"
	"github.com/mcdev12/stillpoint/go/internal/session"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// terminal prints session events as they happen and reports when the session
// is over.
type terminal struct {
	out  io.Writer
	done chan struct{}
}

func (t *terminal) Publish(_ context.Context, e *events.Event) error {
	switch e.Type {
	case events.TypeSessionStarted:
		var p events.SessionStartedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "%s: %d phases, %s\n", p.Title, p.Phases, p.Total)
	case events.TypePhaseChanged:
		var p events.PhaseChangedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "\n[%d] %s  %s\n", p.Index+1, p.Name, p.Countdown)
	case events.TypeSessionProgress:
		var p events.SessionProgressPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "\r    %s  (%s left)", p.Countdown, p.TotalRemaining)
	case events.TypeSessionPaused:
		fmt.Fprint(t.out, "\n    paused, r to resume\n")
	case events.TypeSessionResumed:
		fmt.Fprint(t.out, "    resumed\n")
	case events.TypeSessionCompleted:
		var p events.SessionCompletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "\n\ncompleted in %s\n", p.Duration)
		close(t.done)
	case events.TypeSessionStopped:
		fmt.Fprint(t.out, "\n\nstopped\n")
		close(t.done)
	}
	return nil
}

func main() {
	var (
		kind     = flag.String("kind", string(content.KindBreathing), "program kind (breathing, relax, meditation)")
		program  = flag.String("program", "box", "program id")
		inhale   = flag.Duration("inhale", 0, "custom pattern inhale")
		holdIn   = flag.Duration("hold-in", 0, "custom pattern hold after inhale")
		exhale   = flag.Duration("exhale", 0, "custom pattern exhale")
		holdOut  = flag.Duration("hold-out", 0, "custom pattern hold after exhale")
		cycles   = flag.Int("cycles", 0, "custom pattern cycles")
		withBus  = flag.Bool("bus", false, "also publish to NATS_URL")
		commands = flag.Bool("interactive", true, "read p, r and q commands from stdin")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.SetupLogging(cfg.LogLevel); err != nil {
		log.Warn().Err(err).Msg("invalid log level, using info")
	}

	catalog, err := content.LoadCatalog(cfg.ProgramsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load programs: %v\n", err)
		os.Exit(1)
	}
	manifest := audio.DefaultManifest()
	if cfg.CuesFile != "" {
		if manifest, err = audio.LoadManifest(cfg.CuesFile); err != nil {
			fmt.Fprintf(os.Stderr, "load cues: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	term := &terminal{out: os.Stdout, done: make(chan struct{})}
	publishers := session.MultiPublisher{term}
	if *withBus && cfg.BusEnabled() {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATSURL
		busCfg.StreamName = cfg.StreamName
		bus, err := eventbus.NewPublisher(ctx, busCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect bus: %v\n", err)
			os.Exit(1)
		}
		defer bus.Close()
		publishers = append(publishers, bus)
	}

	clock := clockwork.NewRealClock()
	manager := session.NewManager(catalog, publishers, session.Config{
		Clock:        clock,
		TickInterval: cfg.TickInterval,
		NewPlayer:    session.ClockPlayers(manifest, clock),
	})

	req := session.Request{Kind: content.Kind(*kind), ProgramID: *program}
	if *program == content.CustomID {
		req.Custom = &content.PatternSettings{
			Inhale:  *inhale,
			HoldIn:  *holdIn,
			Exhale:  *exhale,
			HoldOut: *holdOut,
			Cycles:  *cycles,
		}
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return manager.Run(runCtx) })

	state, err := manager.Start(ctx, req)
	if err != nil {
		stopRun()
		_ = g.Wait()
		fmt.Fprintf(os.Stderr, "start session: %v\n", err)
		os.Exit(1)
	}

	if *commands {
		go readCommands(ctx, os.Stdin, manager, state)
	}

	select {
	case <-term.done:
	case <-ctx.Done():
		if _, err := manager.Stop(context.Background(), state.ID); err != nil {
			log.Debug().Err(err).Msg("session already over")
		}
		<-term.done
	}

	stopRun()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("session manager failed")
	}
}

func readCommands(ctx context.Context, in io.Reader, manager *session.Manager, state session.State) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		var err error
		switch strings.TrimSpace(scanner.Text()) {
		case "p":
			_, err = manager.Pause(ctx, state.ID)
		case "r":
			_, err = manager.Resume(ctx, state.ID)
		case "q":
			_, err = manager.Stop(ctx, state.ID)
		default:
			fmt.Fprintln(os.Stderr, "commands: p pause, r resume, q quit")
		}
		if err != nil {
			return
		}
	}
}
