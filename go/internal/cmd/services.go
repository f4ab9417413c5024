package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/stillpoint/go/internal/config"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/eventbus"
	"github.com/mcdev12/stillpoint/go/internal/gateway"
	"github.com/mcdev12/stillpoint/go/internal/session"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Catalog  *content.Catalog
	Sessions *session.Manager
	Gateway  *gateway.Service
	Bus      *eventbus.Publisher
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up the dependency chain
	// Content → Publishers → Session manager → Gateway

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	manifest, err := loadManifest(cfg)
	if err != nil {
		return nil, err
	}

	hub := gateway.NewHub(gateway.DefaultConnectionConfig())
	publishers := session.MultiPublisher{hub}

	var bus *eventbus.Publisher
	if cfg.BusEnabled() {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATSURL
		busCfg.StreamName = cfg.StreamName

		bus, err = eventbus.NewPublisher(ctx, busCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event bus: %w", err)
		}
		publishers = append(publishers, bus)
		log.Info().Str("nats_url", cfg.NATSURL).Str("stream", cfg.StreamName).Msg("event bus enabled")
	}

	clock := clockwork.NewRealClock()
	manager := session.NewManager(catalog, publishers, session.Config{
		Clock:        clock,
		TickInterval: cfg.TickInterval,
		NewPlayer:    session.ClockPlayers(manifest, clock),
	})

	return &Services{
		Catalog:  catalog,
		Sessions: manager,
		Gateway:  gateway.NewService(hub, manager, catalog),
		Bus:      bus,
	}, nil
}

func (s *Services) Close() {
	if s.Bus == nil {
		return
	}
	if err := s.Bus.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event bus")
	}
}
