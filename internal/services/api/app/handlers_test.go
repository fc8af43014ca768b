package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mindlab-sim/mindlab/internal/archive"
	"github.com/mindlab-sim/mindlab/internal/decision"
	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
	"github.com/mindlab-sim/mindlab/internal/geo"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
	"github.com/mindlab-sim/mindlab/internal/simulation/event"
	"github.com/mindlab-sim/mindlab/internal/simulation/registry"
)

type fakeGeo struct {
	places map[string]domain.Location
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{places: map[string]domain.Location{
		"Jiankang":  {Name: "Jiankang", Lat: 32.0583, Lon: 118.7966},
		"Jiangling": {Name: "Jiangling", Lat: 30.3509, Lon: 112.2051},
	}}
}

func (g *fakeGeo) Resolve(name string) (domain.Location, bool) {
	loc, ok := g.places[name]
	return loc, ok
}

func (g *fakeGeo) Route(from, to string) (geo.Route, error) {
	origin, ok := g.places[from]
	if !ok {
		return geo.Route{}, apperrors.New(apperrors.CodeUnknownLocation, "unknown location: "+from)
	}
	destination, ok := g.places[to]
	if !ok {
		return geo.Route{}, apperrors.New(apperrors.CodeUnknownLocation, "unknown location: "+to)
	}
	return geo.Route{Origin: origin, Destination: destination, DistanceKm: 654.9, BoatHours: 107}, nil
}

func (g *fakeGeo) EscapeRoutes(from string, limit int) []geo.Route {
	route, err := g.Route(from, "Jiangling")
	if err != nil {
		return nil
	}
	return []geo.Route{route}
}

type fakeKnowledge struct {
	dangers map[string]int
}

func (k *fakeKnowledge) EventsAt(context.Context, int, int, string) ([]archive.Event, error) {
	return nil, nil
}

func (k *fakeKnowledge) DangerAt(_ context.Context, location string, _ int) (archive.DangerReport, error) {
	level, ok := k.dangers[location]
	if !ok {
		level = 50
	}
	return archive.DangerReport{Location: location, Level: level, Safe: level < 40}, nil
}

// moveDecider always heads for one destination.
type moveDecider struct {
	target string
}

func (d moveDecider) Decide(context.Context, decision.Context) (decision.Outcome, error) {
	return decision.Outcome{Reasoning: "The capital is lost.", Action: "move_to:" + d.target}, nil
}

type waitDecider struct{}

func (waitDecider) Decide(context.Context, decision.Context) (decision.Outcome, error) {
	return decision.Outcome{Reasoning: "Hold.", Action: "wait:observe_situation"}, nil
}

func newTestRegistry(t *testing.T, decider decision.Provider) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Config{
		Geo:       newFakeGeo(),
		Knowledge: &fakeKnowledge{dangers: map[string]int{"Jiankang": 90, "Jiangling": 20}},
		Decider:   decider,
		Hub:       event.NewHub(),
		Clock:     time.Date(548, time.December, 15, 14, 0, 0, 0, time.UTC),
		Profile:   domain.AgentProfile{Name: "Yan Zhitui", BirthYear: 531, Personality: "ISTP", Values: []string{"family safety"}},
		Focus:     "Family Safety",
		Inventory: []string{"travel documents"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func newTestServer(t *testing.T, decider decision.Provider) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(newTestRegistry(t, decider)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func doJSONList(t *testing.T, url string) (*http.Response, []map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return resp, decoded
}

func createSimulation(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/simulations", map[string]any{
		"name":     "Yan Zhitui",
		"location": "Jiankang",
		"stress":   40,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%v)", resp.StatusCode, body)
	}
	id, _ := body["simulation_id"].(string)
	if id == "" {
		t.Fatalf("create: missing simulation_id in %v", body)
	}
	return id
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := envelope["code"].(string)
	return code
}

func TestCreateSimulation(t *testing.T) {
	srv := newTestServer(t, waitDecider{})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/simulations", map[string]any{
		"name":     "Yan Zhitui",
		"location": "Jiankang",
		"stress":   40,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["status"] != "created" {
		t.Fatalf("expected status created, got %v", body["status"])
	}
	state, ok := body["current_state"].(map[string]any)
	if !ok {
		t.Fatalf("missing current_state in %v", body)
	}
	if state["turn"] != float64(0) {
		t.Fatalf("expected turn 0, got %v", state["turn"])
	}
	if state["stress"] != float64(40) {
		t.Fatalf("expected stress 40, got %v", state["stress"])
	}
	agent, ok := body["agent"].(map[string]any)
	if !ok || agent["name"] != "Yan Zhitui" {
		t.Fatalf("unexpected agent: %v", body["agent"])
	}
	// Unspecified profile fields fall back to the default agent.
	if agent["personality"] != "ISTP" {
		t.Fatalf("expected default personality, got %v", agent["personality"])
	}
}

func TestCreateSimulationRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, waitDecider{})

	tests := []struct {
		name     string
		body     map[string]any
		wantCode string
	}{
		{"stress out of range", map[string]any{"name": "X", "location": "Jiankang", "stress": 150}, "INVALID_ARGUMENT"},
		{"unknown location", map[string]any{"name": "X", "location": "Atlantis", "stress": 40}, "UNKNOWN_LOCATION"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/simulations", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if code := errorCode(t, body); code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, code)
			}
		})
	}
}

func TestGetState(t *testing.T) {
	srv := newTestServer(t, waitDecider{})
	id := createSimulation(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/simulations/"+id+"/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["simulation_id"] != id {
		t.Fatalf("unexpected id: %v", body["simulation_id"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/simulations/missing/state", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestStepAdvancesAndCompletes(t *testing.T) {
	srv := newTestServer(t, moveDecider{target: "Jiangling"})
	id := createSimulation(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/simulations/"+id+"/step", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["turn"] != float64(1) {
		t.Fatalf("expected turn 1, got %v", body["turn"])
	}
	location, ok := body["location"].(map[string]any)
	if !ok || location["name"] != "Jiangling" {
		t.Fatalf("expected arrival at Jiangling, got %v", body["location"])
	}
	if stress := body["stress"].(float64); stress >= 40 {
		t.Fatalf("expected stress below 40, got %v", stress)
	}

	// Reaching safety completes the session; further steps conflict.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/simulations/"+id+"/step", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %s", code)
	}
}

func TestStepFailedMoveKeepsRunning(t *testing.T) {
	srv := newTestServer(t, moveDecider{target: "Nowhere"})
	id := createSimulation(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/simulations/"+id+"/step", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	location, ok := body["location"].(map[string]any)
	if !ok || location["name"] != "Jiankang" {
		t.Fatalf("expected location unchanged, got %v", body["location"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/simulations/"+id+"/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "running" {
		t.Fatalf("expected running, got %v", body["status"])
	}
}

func TestStartRunsInBackground(t *testing.T) {
	srv := newTestServer(t, waitDecider{})
	id := createSimulation(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/simulations/"+id+"/start", map[string]any{"max_turns": 3})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%v)", resp.StatusCode, body)
	}
	if body["status"] != "running" {
		t.Fatalf("expected running, got %v", body["status"])
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, state := doJSON(t, http.MethodGet, srv.URL+"/simulations/"+id+"/state", nil)
		if state["status"] == "completed" {
			frame := state["current_state"].(map[string]any)
			if frame["turn"] != float64(3) {
				t.Fatalf("expected 3 turns, got %v", frame["turn"])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never completed, last state %v", state)
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/simulations/"+id+"/start", map[string]any{"max_turns": 3})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on restart, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "INVALID_STATE" {
		t.Fatalf("expected INVALID_STATE, got %s", code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t, waitDecider{})
	id := createSimulation(t, srv)

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/simulations/"+id+"/step", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("step: %d", resp.StatusCode)
	}

	resp, decisions := doJSONList(t, srv.URL+"/simulations/"+id+"/history")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	if decisions[0]["action"] != "wait:observe_situation" {
		t.Fatalf("unexpected action: %v", decisions[0]["action"])
	}
}

func TestListEndpoint(t *testing.T) {
	srv := newTestServer(t, waitDecider{})
	first := createSimulation(t, srv)
	second := createSimulation(t, srv)

	resp, summaries := doJSONList(t, srv.URL+"/simulations")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	seen := map[string]bool{}
	for _, s := range summaries {
		seen[fmt.Sprint(s["simulation_id"])] = true
	}
	if !seen[first] || !seen[second] {
		t.Fatalf("expected both sessions listed, got %v", summaries)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	srv := newTestServer(t, waitDecider{})
	id := createSimulation(t, srv)

	resp, body := doJSON(t, http.MethodDelete, srv.URL+"/simulations/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "deleted" {
		t.Fatalf("expected deleted, got %v", body["status"])
	}

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/simulations/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, waitDecider{})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body["status"])
	}
	if body["active_simulations"] != float64(0) {
		t.Fatalf("expected 0 active, got %v", body["active_simulations"])
	}
	if _, ok := body["timestamp"].(string); !ok {
		t.Fatalf("expected timestamp, got %v", body["timestamp"])
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	srv := newTestServer(t, waitDecider{})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/simulations/missing/state", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if envelope["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", envelope["code"])
	}
	message, _ := envelope["message"].(string)
	if !strings.Contains(message, "missing") {
		t.Fatalf("expected message to name the id, got %q", message)
	}
}
