package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/stillpoint/go/internal/content"
	"github.com/mcdev12/stillpoint/go/internal/phasetimer"
	"github.com/mcdev12/stillpoint/go/internal/session"
	"github.com/mcdev12/stillpoint/go/internal/session/events"
)

type fakeSessions struct {
	mu      sync.Mutex
	states  map[uuid.UUID]session.State
	lastReq session.Request
	actions []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{states: make(map[uuid.UUID]session.State)}
}

func (f *fakeSessions) add(status session.Status) session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := session.State{
		ID:        uuid.New(),
		Kind:      content.KindBreathing,
		ProgramID: "box",
		Title:     "Box breathing",
		Status:    status,
		Timer: phasetimer.Snapshot{
			Running:        true,
			Phase:          phasetimer.Phase{ID: "inhale_1", Name: "Inhale", Duration: 4 * time.Second, Cue: "inhale"},
			PhaseRemaining: 4 * time.Second,
			Total:          64 * time.Second,
			TotalRemaining: 64 * time.Second,
		},
		Countdown: "00:04",
	}
	f.states[s.ID] = s
	return s
}

func (f *fakeSessions) Start(_ context.Context, req session.Request) (session.State, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if req.ProgramID == "missing" {
		return session.State{}, fmt.Errorf("resolve program: %w", content.ErrProgramNotFound)
	}
	if req.Custom != nil && req.Custom.Cycles > content.CyclesMax {
		return session.State{}, fmt.Errorf("resolve program: %w", content.ErrPatternOutOfRange)
	}
	return f.add(session.StatusRunning), nil
}

func (f *fakeSessions) transition(id uuid.UUID, action string, status session.Status) (session.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[id]
	if !ok {
		return session.State{}, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	f.actions = append(f.actions, action)
	if status != "" {
		s.Status = status
		f.states[id] = s
	}
	return s, nil
}

func (f *fakeSessions) Pause(_ context.Context, id uuid.UUID) (session.State, error) {
	return f.transition(id, "pause", session.StatusPaused)
}

func (f *fakeSessions) Resume(_ context.Context, id uuid.UUID) (session.State, error) {
	return f.transition(id, "resume", session.StatusRunning)
}

func (f *fakeSessions) Stop(_ context.Context, id uuid.UUID) (session.State, error) {
	return f.transition(id, "stop", session.StatusStopped)
}

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID) (session.State, error) {
	return f.transition(id, "get", "")
}

func (f *fakeSessions) List(context.Context) []session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.State, 0, len(f.states))
	for _, s := range f.states {
		out = append(out, s)
	}
	return out
}

func (f *fakeSessions) actionList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

func newTestServer(t *testing.T, sessions SessionService) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(DefaultConnectionConfig())
	svc := NewService(hub, sessions, content.NewCatalog())

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		server.Close()
	})
	return server, hub
}

func TestListPrograms(t *testing.T) {
	server, _ := newTestServer(t, newFakeSessions())

	resp, err := http.Get(server.URL + "/api/programs")
	if err != nil {
		t.Fatalf("get programs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body ProgramsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var box *PatternView
	for i := range body.Breathing {
		if body.Breathing[i].ID == "box" {
			box = &body.Breathing[i]
		}
	}
	if box == nil {
		t.Fatalf("expected box pattern in %+v", body.Breathing)
	}
	if box.InhaleMs != 4000 || box.CycleMs != 16000 {
		t.Fatalf("unexpected box pattern %+v", box)
	}
	if len(body.Relax) == 0 {
		t.Fatal("expected relaxation modes")
	}
}

func TestStartSession(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "preset", body: `{"kind":"breathing","program_id":"box"}`, wantStatus: http.StatusCreated},
		{name: "custom", body: `{"kind":"breathing","program_id":"custom","custom":{"inhale_ms":5000,"exhale_ms":5000,"cycles":4}}`, wantStatus: http.StatusCreated},
		{name: "custom out of range", body: `{"kind":"breathing","program_id":"custom","custom":{"inhale_ms":5000,"exhale_ms":5000,"cycles":40}}`, wantStatus: http.StatusBadRequest},
		{name: "unknown program", body: `{"kind":"relax","program_id":"missing"}`, wantStatus: http.StatusNotFound},
		{name: "missing fields", body: `{"kind":"relax"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"kind":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"kind":"relax","program_id":"quick","speed":2}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newFakeSessions()
			server, _ := newTestServer(t, sessions)

			resp, err := http.Post(server.URL+"/api/sessions", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestStartSessionConvertsMilliseconds(t *testing.T) {
	sessions := newFakeSessions()
	server, _ := newTestServer(t, sessions)

	body := `{"kind":"breathing","program_id":"custom","custom":{"inhale_ms":4500,"hold_in_ms":1000,"exhale_ms":6000,"cycles":5}}`
	resp, err := http.Post(server.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Phase.DurationMs != 4000 || view.TotalMs != 64000 || view.Status != "running" {
		t.Fatalf("unexpected view %+v", view)
	}

	custom := sessions.lastReq.Custom
	if custom == nil || custom.Inhale != 4500*time.Millisecond || custom.HoldIn != time.Second || custom.Exhale != 6*time.Second || custom.Cycles != 5 {
		t.Fatalf("unexpected custom settings %+v", custom)
	}
}

func TestControlSession(t *testing.T) {
	sessions := newFakeSessions()
	server, _ := newTestServer(t, sessions)
	state := sessions.add(session.StatusRunning)

	tests := []struct {
		path       string
		wantStatus int
		wantState  string
	}{
		{path: "/api/sessions/" + state.ID.String() + "/pause", wantStatus: http.StatusOK, wantState: "paused"},
		{path: "/api/sessions/" + state.ID.String() + "/resume", wantStatus: http.StatusOK, wantState: "running"},
		{path: "/api/sessions/" + state.ID.String() + "/stop", wantStatus: http.StatusOK, wantState: "stopped"},
		{path: "/api/sessions/" + uuid.NewString() + "/pause", wantStatus: http.StatusNotFound},
		{path: "/api/sessions/not-a-uuid/stop", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		resp, err := http.Post(server.URL+tt.path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", tt.path, err)
		}
		if resp.StatusCode != tt.wantStatus {
			resp.Body.Close()
			t.Fatalf("%s: expected %d, got %d", tt.path, tt.wantStatus, resp.StatusCode)
		}
		if tt.wantState != "" {
			var view SessionView
			if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if view.Status != tt.wantState {
				t.Fatalf("%s: expected %s, got %s", tt.path, tt.wantState, view.Status)
			}
		}
		resp.Body.Close()
	}
}

func TestGetAndListSessions(t *testing.T) {
	sessions := newFakeSessions()
	server, _ := newTestServer(t, sessions)
	state := sessions.add(session.StatusRunning)
	sessions.add(session.StatusPaused)

	resp, err := http.Get(server.URL + "/api/sessions/" + state.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var view SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if view.ID != state.ID.String() || view.Countdown != "00:04" || view.Phase.Cue != "inhale" {
		t.Fatalf("unexpected view %+v", view)
	}

	resp, err = http.Get(server.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	var views []SessionView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(views))
	}
}

func dial(t *testing.T, server *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/session" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func waitForConnections(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().TotalConnections != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", n, hub.Stats().TotalConnections)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketStreamsSessionEvents(t *testing.T) {
	sessions := newFakeSessions()
	server, hub := newTestServer(t, sessions)
	state := sessions.add(session.StatusRunning)
	other := sessions.add(session.StatusRunning)

	conn, _, err := dial(t, server, "?session_id="+state.ID.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readMessage(t, conn)
	if first["eventType"] != TypeSessionState || first["sessionId"] != state.ID.String() {
		t.Fatalf("unexpected initial message %v", first)
	}
	waitForConnections(t, hub, 1)

	ignored, err := events.New(other.ID, events.TypePhaseChanged, events.PhaseChangedPayload{Index: 9}, time.Now())
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	event, err := events.New(state.ID, events.TypePhaseChanged, events.PhaseChangedPayload{Index: 1, Cue: "hold"}, time.Now())
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := hub.Publish(context.Background(), ignored); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := readMessage(t, conn)
	if msg["eventType"] != events.TypePhaseChanged || msg["eventId"] != event.ID {
		t.Fatalf("unexpected event %v", msg)
	}
	payload, _ := msg["payload"].(map[string]any)
	if payload["cue"] != "hold" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestWebSocketCommands(t *testing.T) {
	sessions := newFakeSessions()
	server, hub := newTestServer(t, sessions)
	state := sessions.add(session.StatusRunning)

	conn, _, err := dial(t, server, "?session_id="+state.ID.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readMessage(t, conn)
	waitForConnections(t, hub, 1)

	for _, msg := range []string{`{"action":"pause"}`, `not json`, `{"action":"rewind"}`, `{"action":"resume"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := sessions.actionList()
		// The upgrade handler reads the session twice: once to validate, once
		// for the initial message.
		if len(got) == 4 {
			if got[2] != "pause" || got[3] != "resume" {
				t.Fatalf("unexpected actions %v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out, actions %v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// racingSessions publishes an event while the initial state is being read,
// as a session would when it changes phase during a connect.
type racingSessions struct {
	*fakeSessions
	mu    sync.Mutex
	gets  int
	hub   *Hub
	event *events.Event
}

func (r *racingSessions) Get(ctx context.Context, id uuid.UUID) (session.State, error) {
	r.mu.Lock()
	r.gets++
	publish := r.gets == 2
	hub, event := r.hub, r.event
	r.mu.Unlock()
	if publish {
		if err := hub.Publish(ctx, event); err != nil {
			return session.State{}, err
		}
	}
	return r.fakeSessions.Get(ctx, id)
}

func TestWebSocketKeepsEventsPublishedDuringConnect(t *testing.T) {
	sessions := &racingSessions{fakeSessions: newFakeSessions()}
	server, hub := newTestServer(t, sessions)
	state := sessions.add(session.StatusRunning)

	event, err := events.New(state.ID, events.TypePhaseChanged, events.PhaseChangedPayload{Index: 1}, time.Now())
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	sessions.mu.Lock()
	sessions.hub = hub
	sessions.event = event
	sessions.mu.Unlock()

	conn, _, err := dial(t, server, "?session_id="+state.ID.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if first := readMessage(t, conn); first["eventType"] != TypeSessionState {
		t.Fatalf("expected state first, got %v", first)
	}
	if msg := readMessage(t, conn); msg["eventId"] != event.ID {
		t.Fatalf("expected event published during connect, got %v", msg)
	}
}

func TestWebSocketRejectsBadSessions(t *testing.T) {
	server, _ := newTestServer(t, newFakeSessions())

	tests := []struct {
		query      string
		wantStatus int
	}{
		{query: "", wantStatus: http.StatusBadRequest},
		{query: "?session_id=nope", wantStatus: http.StatusBadRequest},
		{query: "?session_id=" + uuid.NewString(), wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		_, resp, err := dial(t, server, tt.query)
		if err == nil {
			t.Fatalf("%q: expected dial to fail", tt.query)
		}
		if resp == nil || resp.StatusCode != tt.wantStatus {
			t.Fatalf("%q: expected %d, got %+v", tt.query, tt.wantStatus, resp)
		}
	}
}

func TestHubDropsClientsOnShutdown(t *testing.T) {
	sessions := newFakeSessions()
	hub := NewHub(DefaultConnectionConfig())
	svc := NewService(hub, sessions, content.NewCatalog())
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	state := sessions.add(session.StatusRunning)
	conn, _, err := dial(t, server, "?session_id="+state.ID.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readMessage(t, conn)
	waitForConnections(t, hub, 1)

	event, err := events.New(state.ID, events.TypeSessionStopped, events.SessionStoppedPayload{Reason: "shutdown"}, time.Now())
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	cancel()
	<-done

	if msg := readMessage(t, conn); msg["eventId"] != event.ID {
		t.Fatalf("expected queued event before close, got %v", msg)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNoStatusReceived) {
		t.Fatalf("expected close frame, got %v", err)
	}
	if svc.Stats().TotalConnections != 0 {
		t.Fatalf("expected no connections, got %+v", svc.Stats())
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, newFakeSessions())

	resp, err := http.Get(server.URL + "/ws/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), `"total_connections":0`) {
		t.Fatalf("unexpected stats %s", buf.String())
	}
}
