package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
	"github.com/mindlab-sim/mindlab/internal/simulation/registry"
)

const maxRequestBodyBytes = 64 * 1024

// NewHandler creates the simulation REST and WebSocket routes.
func NewHandler(reg *registry.Registry) http.Handler {
	h := &handler{reg: reg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /simulations", h.createSimulation)
	mux.HandleFunc("GET /simulations", h.listSimulations)
	mux.HandleFunc("GET /simulations/{id}/state", h.getState)
	mux.HandleFunc("POST /simulations/{id}/start", h.startSimulation)
	mux.HandleFunc("POST /simulations/{id}/step", h.stepSimulation)
	mux.HandleFunc("GET /simulations/{id}/history", h.getHistory)
	mux.HandleFunc("DELETE /simulations/{id}", h.deleteSimulation)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ws/simulations/{id}", h.streamEvents)

	return mux
}

type handler struct {
	reg *registry.Registry
}

type createRequest struct {
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Stress      int      `json:"stress"`
	BirthYear   int      `json:"birth_year,omitempty"`
	Personality string   `json:"personality,omitempty"`
	Values      []string `json:"values,omitempty"`
}

type startRequest struct {
	MaxTurns int `json:"max_turns"`
}

type agentDoc struct {
	Name        string   `json:"name"`
	BirthYear   int      `json:"birth_year"`
	Personality string   `json:"personality"`
	Values      []string `json:"values"`
}

type locationDoc struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type frameDoc struct {
	Turn         int         `json:"turn"`
	Time         time.Time   `json:"time"`
	Location     locationDoc `json:"location"`
	Stress       int         `json:"stress"`
	Focus        string      `json:"focus"`
	Inventory    []string    `json:"inventory"`
	RecentEvents []string    `json:"recent_events"`
}

type stateDoc struct {
	SimulationID string    `json:"simulation_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	Agent        agentDoc  `json:"agent"`
	CurrentState frameDoc  `json:"current_state"`
	Error        string    `json:"error,omitempty"`
}

type summaryDoc struct {
	SimulationID string    `json:"simulation_id"`
	Status       string    `json:"status"`
	AgentName    string    `json:"agent_name"`
	Location     string    `json:"location"`
	Turn         int       `json:"turn"`
	CreatedAt    time.Time `json:"created_at"`
}

type decisionDoc struct {
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
	Event     string    `json:"event,omitempty"`
	Reasoning string    `json:"reasoning"`
	Action    string    `json:"action"`
	Stress    int       `json:"stress"`
}

type errorEnvelope struct {
	Error errorDoc `json:"error"`
}

type errorDoc struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *handler) createSimulation(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	profile := domain.AgentProfile{
		Name:        req.Name,
		BirthYear:   req.BirthYear,
		Personality: req.Personality,
		Values:      req.Values,
	}
	state, err := h.reg.Create(r.Context(), profile, req.Location, req.Stress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStateDoc(state))
}

func (h *handler) listSimulations(w http.ResponseWriter, _ *http.Request) {
	summaries := h.reg.List()
	docs := make([]summaryDoc, 0, len(summaries))
	for _, s := range summaries {
		docs = append(docs, summaryDoc{
			SimulationID: s.ID,
			Status:       string(s.Status),
			AgentName:    s.AgentName,
			Location:     s.Location,
			Turn:         s.Turn,
			CreatedAt:    s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handler) getState(w http.ResponseWriter, r *http.Request) {
	state, err := h.reg.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateDoc(state))
}

func (h *handler) startSimulation(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	state, err := h.reg.Start(r.PathValue("id"), req.MaxTurns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"simulation_id": state.ID,
		"status":        string(state.Status),
	})
}

func (h *handler) stepSimulation(w http.ResponseWriter, r *http.Request) {
	frame, err := h.reg.Step(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFrameDoc(frame))
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.reg.History(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	docs := make([]decisionDoc, 0, len(decisions))
	for _, d := range decisions {
		docs = append(docs, decisionDoc{
			Turn:      d.Turn,
			Timestamp: d.Timestamp,
			Location:  d.Location,
			Event:     d.Event,
			Reasoning: d.Reasoning,
			Action:    d.Action,
			Stress:    d.Stress,
		})
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handler) deleteSimulation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.reg.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"simulation_id": id,
		"status":        "deleted",
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"timestamp":          time.Now().UTC(),
		"active_simulations": h.reg.ActiveCount(),
	})
}

func toStateDoc(state registry.State) stateDoc {
	return stateDoc{
		SimulationID: state.ID,
		Status:       string(state.Status),
		CreatedAt:    state.CreatedAt,
		Agent: agentDoc{
			Name:        state.Profile.Name,
			BirthYear:   state.Profile.BirthYear,
			Personality: state.Profile.Personality,
			Values:      state.Profile.Values,
		},
		CurrentState: toFrameDoc(state.Frame),
		Error:        state.Failure,
	}
}

func toFrameDoc(frame domain.Frame) frameDoc {
	inventory := frame.Inventory
	if inventory == nil {
		inventory = []string{}
	}
	recent := frame.RecentEvents
	if recent == nil {
		recent = []string{}
	}
	return frameDoc{
		Turn:         frame.Turn,
		Time:         frame.Timestamp,
		Location:     locationDoc{Name: frame.Location.Name, Lat: frame.Location.Lat, Lon: frame.Location.Lon},
		Stress:       frame.Psych.Stress,
		Focus:        frame.Psych.Focus,
		Inventory:    inventory,
		RecentEvents: recent,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty body means all-default fields.
			return nil
		}
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), errorEnvelope{Error: errorDoc{
		Code:    string(code),
		Message: err.Error(),
	}})
}
