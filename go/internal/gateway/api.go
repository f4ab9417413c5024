package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
	"github.com/mcdev12/stillpoint/go/internal/session"
	"github.com/rs/zerolog/log"
)

const maxRequestBody = 1 << 16

// SessionService is the session manager as the gateway sees it.
type SessionService interface {
	Start(ctx context.Context, req session.Request) (session.State, error)
	Pause(ctx context.Context, id uuid.UUID) (session.State, error)
	Resume(ctx context.Context, id uuid.UUID) (session.State, error)
	Stop(ctx context.Context, id uuid.UUID) (session.State, error)
	Get(ctx context.Context, id uuid.UUID) (session.State, error)
	List(ctx context.Context) []session.State
}

// ProgramLister lists the content a client can start.
type ProgramLister interface {
	Listing() content.Listing
}

// APIHandler serves the REST API.
type APIHandler struct {
	sessions SessionService
	programs ProgramLister
}

// NewAPIHandler creates a new REST handler
func NewAPIHandler(sessions SessionService, programs ProgramLister) *APIHandler {
	return &APIHandler{sessions: sessions, programs: programs}
}

// RegisterRoutes registers the REST routes with an HTTP mux
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/programs", h.HandleListPrograms)
	mux.HandleFunc("POST /api/sessions", h.HandleStartSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/pause", h.control(h.sessions.Pause))
	mux.HandleFunc("POST /api/sessions/{id}/resume", h.control(h.sessions.Resume))
	mux.HandleFunc("POST /api/sessions/{id}/stop", h.control(h.sessions.Stop))
}

// HandleListPrograms handles GET /api/programs
func (h *APIHandler) HandleListPrograms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newProgramsResponse(h.programs.Listing()))
}

// HandleStartSession handles POST /api/sessions
func (h *APIHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Kind == "" || body.ProgramID == "" {
		http.Error(w, "kind and program_id are required", http.StatusBadRequest)
		return
	}

	state, err := h.sessions.Start(r.Context(), body.toRequest())
	if err != nil {
		writeError(w, err, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(state))
}

// HandleListSessions handles GET /api/sessions
func (h *APIHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	states := h.sessions.List(r.Context())
	views := make([]SessionView, 0, len(states))
	for _, s := range states {
		views = append(views, newSessionView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGetSession handles GET /api/sessions/{id}
func (h *APIHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.control(h.sessions.Get)(w, r)
}

func (h *APIHandler) control(fn func(context.Context, uuid.UUID) (session.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid session id format", http.StatusBadRequest)
			return
		}

		state, err := fn(r.Context(), id)
		if err != nil {
			writeError(w, err, "session request failed")
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(state))
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error, msg string) {
	var invalid *phasetimer.InvalidSessionError
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, content.ErrProgramNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, content.ErrPatternOutOfRange), errors.As(err, &invalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
