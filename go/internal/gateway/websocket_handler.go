package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TypeSessionState is the first message on every socket: the session as it is
// when the client connects.
const TypeSessionState = "SessionState"

// stateMessage mirrors the event envelope so clients parse one shape.
type stateMessage struct {
	Type      string      `json:"eventType"`
	SessionID string      `json:"sessionId"`
	Payload   SessionView `json:"payload"`
}

var errUnknownAction = errors.New("unknown action")

// WebSocketHandler handles WebSocket upgrade requests for session streams
type WebSocketHandler struct {
	hub      *Hub
	sessions SessionService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, sessions SessionService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, sessions: sessions}
}

// HandleSessionConnection handles WS /ws/session?session_id=
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("session_id")
	if idStr == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	sessionID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid session_id format", http.StatusBadRequest)
		return
	}

	if _, err := h.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, err, "failed to load session")
		return
	}

	ctx := r.Context()
	initial := func() ([]byte, error) {
		state, err := h.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stateMessage{
			Type:      TypeSessionState,
			SessionID: sessionID.String(),
			Payload:   newSessionView(state),
		})
	}

	// Upgrade writes its own error response on failure.
	if err := h.hub.Upgrade(w, r, sessionID, initial, h.command); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/session", h.HandleSessionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

// command lets a client drive its session over the socket.
func (h *WebSocketHandler) command(ctx context.Context, sessionID uuid.UUID, action string) error {
	var err error
	switch action {
	case "pause":
		_, err = h.sessions.Pause(ctx, sessionID)
	case "resume":
		_, err = h.sessions.Resume(ctx, sessionID)
	case "stop":
		_, err = h.sessions.Stop(ctx, sessionID)
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, action)
	}
	return err
}
