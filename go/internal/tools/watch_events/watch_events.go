package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/stillpoint/go/internal/config"
	"github.com/mcdev12/stillpoint/go/internal/eventbus"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// watch_events tails the session event stream, optionally for one session.
func main() {
	var (
		sessionID = flag.String("session", "", "only show events for this session id")
		durable   = flag.String("durable", "", "durable consumer name (default: ephemeral)")
		newOnly   = flag.Bool("new", false, "skip events already in the stream")
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
	if !cfg.BusEnabled() {
		fmt.Fprintln(os.Stderr, "NATS_URL is not set")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	busCfg := eventbus.DefaultConfig()
	busCfg.URL = cfg.NATSURL
	busCfg.StreamName = cfg.StreamName

	consumer, err := eventbus.NewConsumer(ctx, busCfg, eventbus.ConsumerConfig{
		Name:       *durable,
		SessionID:  *sessionID,
		DeliverNew: *newOnly,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create consumer: %v\n", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.Run(ctx, func(_ context.Context, e *events.Event) error {
		fmt.Printf("%s  %-17s %s  %s\n", e.Timestamp.Format("15:04:05.000"), e.Type, e.SessionID, e.Payload)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("consumer stopped")
	}
}
