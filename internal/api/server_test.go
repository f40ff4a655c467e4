package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edmw/volumio-hid/internal/command"
	"github.com/edmw/volumio-hid/internal/history"
	"github.com/edmw/volumio-hid/internal/infrastructure/config"
	"github.com/edmw/volumio-hid/internal/infrastructure/logging"
	"github.com/edmw/volumio-hid/internal/supervisor"
	"github.com/edmw/volumio-hid/internal/volumio"
)

// fakePlayer reports a fixed session state.
type fakePlayer struct {
	connected bool
	state     volumio.State
}

func (p *fakePlayer) IsConnected() bool    { return p.connected }
func (p *fakePlayer) State() volumio.State { return p.state }

// fakeScans returns canned history results.
type fakeScans struct {
	result *history.ListResult
	filter history.Filter
	err    error
}

func (s *fakeScans) List(_ context.Context, filter history.Filter) (*history.ListResult, error) {
	s.filter = filter
	return s.result, s.err
}

// fakeTasks reports fixed task stats.
type fakeTasks struct {
	stats []supervisor.TaskStats
}

func (t *fakeTasks) Stats() []supervisor.TaskStats { return t.stats }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()

	deps.Config = config.APIConfig{Host: "127.0.0.1", Port: 8337}
	deps.Logger = logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")
	if deps.Version == "" {
		deps.Version = "test"
	}

	s, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresLogger(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("New() without logger should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, Deps{Version: "1.2.3"})

	rec := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Errorf("body = %v, want status ok and version 1.2.3", body)
	}
}

func TestHandleStatus(t *testing.T) {
	player := &fakePlayer{
		connected: true,
		state:     volumio.State{Status: "play", Title: "Song A", Volume: 42},
	}
	tasks := &fakeTasks{stats: []supervisor.TaskStats{
		{Name: "pipeline", Status: supervisor.StatusRunning},
	}}

	s := newTestServer(t, Deps{
		DevicePath: "/dev/input/event7",
		Player:     player,
		Tasks:      tasks,
	})

	rec := doRequest(t, s, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Device.Path != "/dev/input/event7" {
		t.Errorf("device path = %q", body.Device.Path)
	}
	if body.Session == nil || !body.Session.Connected || body.Session.Player.Title != "Song A" {
		t.Errorf("session = %+v, want connected with Song A", body.Session)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].Name != "pipeline" {
		t.Errorf("tasks = %+v, want the pipeline task", body.Tasks)
	}
}

func TestHandleStatus_WithoutOptionalSources(t *testing.T) {
	s := newTestServer(t, Deps{DevicePath: "/dev/input/event7"})

	rec := doRequest(t, s, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Session != nil {
		t.Errorf("session = %+v, want omitted when no player is wired", body.Session)
	}
}

func TestHandleListScans(t *testing.T) {
	scans := &fakeScans{result: &history.ListResult{
		Scans: []history.Scan{
			{ID: "scan-1", Identifier: "0004775724", Outcome: command.OutcomeCommand, Command: command.Play},
		},
		Total: 1,
		Limit: 50,
	}}
	s := newTestServer(t, Deps{Scans: scans})

	rec := doRequest(t, s, http.MethodGet, "/api/scans?outcome=command&limit=10&offset=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if scans.filter.Outcome != command.OutcomeCommand || scans.filter.Limit != 10 || scans.filter.Offset != 5 {
		t.Errorf("filter = %+v, want outcome=command limit=10 offset=5", scans.filter)
	}

	var body history.ListResult
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Total != 1 || body.Scans[0].Identifier != "0004775724" {
		t.Errorf("body = %+v, want the seeded scan", body)
	}
}

func TestHandleListScans_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, Deps{})

	rec := doRequest(t, s, http.MethodGet, "/api/scans")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", rec.Code)
	}
}

func TestHandleListScans_BadLimit(t *testing.T) {
	s := newTestServer(t, Deps{Scans: &fakeScans{result: &history.ListResult{}}})

	rec := doRequest(t, s, http.MethodGet, "/api/scans?limit=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-integer limit", rec.Code)
	}
}
