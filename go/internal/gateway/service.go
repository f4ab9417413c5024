package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the client-facing side of stillpoint: REST control plus live
// session streams over WebSocket.
//
// The hub is built first because the session manager publishes to it:
//
//	hub := gateway.NewHub(gateway.DefaultConnectionConfig())
//	manager := session.NewManager(catalog, session.MultiPublisher{hub, bus}, cfg)
//	svc := gateway.NewService(hub, manager, catalog)
type Service struct {
	hub       *Hub
	wsHandler *WebSocketHandler
	api       *APIHandler
}

// NewService creates a new gateway service
func NewService(hub *Hub, sessions SessionService, programs ProgramLister) *Service {
	return &Service{
		hub:       hub,
		wsHandler: NewWebSocketHandler(hub, sessions),
		api:       NewAPIHandler(sessions, programs),
	}
}

// Start runs the broadcast loop until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting gateway service")
	s.hub.Start(ctx)
	log.Info().Msg("gateway service stopped")
}

// RegisterRoutes registers the REST and WebSocket routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.api.RegisterRoutes(mux)
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() Stats {
	return s.hub.Stats()
}
