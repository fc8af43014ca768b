// Package registry owns every live simulation session. All operations go
// through the registry by session identifier; nothing else holds a
// long-lived reference to a session.
package registry

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mindlab-sim/mindlab/internal/decision"
	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
	"github.com/mindlab-sim/mindlab/internal/simulation/engine"
	"github.com/mindlab-sim/mindlab/internal/simulation/event"
)

// Config assembles a registry with its shared providers.
type Config struct {
	Geo       engine.GeoResolver
	Knowledge engine.Knowledge
	Decider   decision.Provider
	Hub       *event.Hub
	// Clock is the simulated in-world start time for new sessions.
	Clock time.Time
	// Profile is the default agent; create requests may override any of
	// its fields.
	Profile domain.AgentProfile
	// Focus and Inventory seed the agent state of new sessions.
	Focus     string
	Inventory []string
	Policy    engine.Policy
}

// Registry is the sole owner of the session map. It is safe for concurrent
// use by request handlers and background turn loops.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	geo       engine.GeoResolver
	knowledge engine.Knowledge
	decider   decision.Provider
	hub       *event.Hub
	clock     time.Time
	profile   domain.AgentProfile
	focus     string
	inventory []string
	policy    engine.Policy
}

// session pairs an engine with its run bookkeeping. turnMu serializes
// turns and is held across a whole turn, provider calls included. mu
// guards the cached snapshot so reads never wait on an in-flight turn.
// Lock order: turnMu before mu, never the reverse.
type session struct {
	id        string
	createdAt time.Time

	turnMu sync.Mutex
	eng    *engine.Engine

	mu        sync.Mutex
	state     State
	history   []domain.Decision
	runActive bool
	cancelRun context.CancelFunc
}

// State is a read-only session snapshot.
type State struct {
	ID        string
	Status    domain.Status
	Frame     domain.Frame
	Profile   domain.AgentProfile
	CreatedAt time.Time
	Failure   string
}

// Summary is one row of a session listing.
type Summary struct {
	ID        string
	Status    domain.Status
	AgentName string
	Location  string
	Turn      int
	CreatedAt time.Time
}

// New builds an empty registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Geo == nil || cfg.Knowledge == nil || cfg.Decider == nil {
		return nil, fmt.Errorf("geo, knowledge, and decider providers are required")
	}
	if cfg.Hub == nil {
		cfg.Hub = event.NewHub()
	}
	policy := cfg.Policy
	if policy == (engine.Policy{}) {
		policy = engine.DefaultPolicy()
	}
	return &Registry{
		sessions:  make(map[string]*session),
		geo:       cfg.Geo,
		knowledge: cfg.Knowledge,
		decider:   cfg.Decider,
		hub:       cfg.Hub,
		clock:     cfg.Clock,
		profile:   cfg.Profile,
		focus:     cfg.Focus,
		inventory: cfg.Inventory,
		policy:    policy,
	}, nil
}

// Hub returns the event hub sessions publish to.
func (r *Registry) Hub() *event.Hub {
	return r.hub
}

// Create validates the profile, resolves the starting location, and stores
// a new session in the created state. Stress outside [0,100] is rejected.
func (r *Registry) Create(ctx context.Context, profile domain.AgentProfile, startingLocation string, stress int) (State, error) {
	profile = r.fillProfile(profile)
	profile, err := domain.NormalizeAgentProfile(profile)
	if err != nil {
		return State{}, err
	}
	if stress < domain.StressMin || stress > domain.StressMax {
		return State{}, apperrors.New(apperrors.CodeInvalidArgument,
			fmt.Sprintf("stress %d outside [%d, %d]", stress, domain.StressMin, domain.StressMax))
	}
	start, ok := r.geo.Resolve(startingLocation)
	if !ok {
		return State{}, apperrors.New(apperrors.CodeUnknownLocation,
			fmt.Sprintf("unknown location: %s", startingLocation))
	}

	id, err := domain.NewID()
	if err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeInternal, "generate session id", err)
	}
	eng, err := engine.New(engine.Config{
		Profile:   profile,
		Start:     start,
		Stress:    stress,
		Focus:     r.focus,
		Inventory: r.inventory,
		Clock:     r.clock,
		Geo:       r.geo,
		Knowledge: r.knowledge,
		Decider:   r.decider,
		Policy:    r.policy,
		Publish: func(eventType string, data map[string]any) {
			r.hub.Publish(id, eventType, data)
		},
	})
	if err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeInternal, "build session engine", err)
	}

	s := &session{
		id:        id,
		createdAt: time.Now().UTC(),
		eng:       eng,
	}
	s.state = snapshot(s)
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	return s.state, nil
}

// Get returns a read-only snapshot of one session.
func (r *Registry) Get(id string) (State, error) {
	s, err := r.lookup(id)
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Start launches a background turn loop for the session, running until a
// terminal state or the turn limit. It returns immediately. Terminal
// sessions and sessions already mid-run are rejected.
func (r *Registry) Start(id string, maxTurns int) (State, error) {
	s, err := r.lookup(id)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	if s.runActive {
		s.mu.Unlock()
		return State{}, apperrors.New(apperrors.CodeInvalidState, "a run is already in progress")
	}
	if !s.state.Status.CanAdvance() {
		status := s.state.Status
		s.mu.Unlock()
		return State{}, apperrors.New(apperrors.CodeInvalidState,
			fmt.Sprintf("session is %s and accepts no more turns", status))
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.runActive = true
	s.cancelRun = cancel
	s.state.Status = domain.StatusRunning
	state := s.state
	s.mu.Unlock()

	// Waits out any manual step still holding the turn lock.
	s.turnMu.Lock()
	s.eng.SetMaxTurns(maxTurns)
	limit := s.eng.MaxTurns()
	s.turnMu.Unlock()

	r.hub.Publish(id, event.TypeSimulationStarted, map[string]any{
		"simulation_id": id,
		"max_turns":     limit,
	})

	go r.run(runCtx, s)

	return state, nil
}

// run executes turns until the session terminates or the run is canceled.
func (r *Registry) run(ctx context.Context, s *session) {
	defer func() {
		s.mu.Lock()
		s.runActive = false
		s.cancelRun = nil
		s.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		s.turnMu.Lock()
		if !s.eng.Status().CanAdvance() {
			s.turnMu.Unlock()
			return
		}
		_, err := s.eng.Step(ctx)
		s.refresh()
		s.turnMu.Unlock()
		if err != nil {
			// The engine already recorded the failure and emitted
			// simulation_error; the run just stops.
			log.Printf("simulation %s run stopped: %v", s.id, err)
			return
		}
	}
}

// Step executes exactly one turn synchronously and returns the resulting
// frame. A session mid-run rejects manual steps to keep turns serialized.
func (r *Registry) Step(ctx context.Context, id string) (domain.Frame, error) {
	s, err := r.lookup(id)
	if err != nil {
		return domain.Frame{}, err
	}

	s.mu.Lock()
	runActive := s.runActive
	s.mu.Unlock()
	if runActive {
		return domain.Frame{}, apperrors.New(apperrors.CodeInvalidState, "a run is in progress; manual steps are rejected")
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	// A run may have started while this call waited for the turn lock.
	s.mu.Lock()
	runActive = s.runActive
	s.mu.Unlock()
	if runActive {
		return domain.Frame{}, apperrors.New(apperrors.CodeInvalidState, "a run is in progress; manual steps are rejected")
	}

	frame, err := s.eng.Step(ctx)
	s.refresh()
	return frame, err
}

// History returns the full ordered decision list for a session.
func (r *Registry) History(id string) ([]domain.Decision, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Decision(nil), s.history...), nil
}

// List returns a summary for every live session, oldest first.
func (r *Registry) List() []Summary {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		summaries = append(summaries, Summary{
			ID:        s.id,
			Status:    s.state.Status,
			AgentName: s.state.Profile.Name,
			Location:  s.state.Frame.Location.Name,
			Turn:      s.state.Frame.Turn,
			CreatedAt: s.createdAt,
		})
		s.mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}

// ActiveCount returns how many sessions are currently running.
func (r *Registry) ActiveCount() int {
	active := 0
	for _, summary := range r.List() {
		if summary.Status == domain.StatusRunning {
			active++
		}
	}
	return active
}

// Delete removes a session, cancels any background run, and disconnects
// its subscribers. A second delete for the same id reports NotFound. An
// in-flight turn finishes its append, but its events go nowhere.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("simulation %s not found", id))
	}

	// Close subscribers before canceling so no event from the final
	// in-flight turn reaches them.
	r.hub.CloseSession(id)

	s.mu.Lock()
	cancel := s.cancelRun
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// fillProfile falls back to the default agent for any field a create
// request leaves empty.
func (r *Registry) fillProfile(profile domain.AgentProfile) domain.AgentProfile {
	if profile.Name == "" {
		profile.Name = r.profile.Name
	}
	if profile.BirthYear == 0 {
		profile.BirthYear = r.profile.BirthYear
	}
	if profile.Personality == "" {
		profile.Personality = r.profile.Personality
	}
	if len(profile.Values) == 0 {
		profile.Values = append([]string(nil), r.profile.Values...)
	}
	return profile
}

func (r *Registry) lookup(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("simulation %s not found", id))
	}
	return s, nil
}

// refresh recomputes the cached snapshot. The caller holds turnMu.
func (s *session) refresh() {
	state := snapshot(s)
	history := s.eng.Decisions()
	s.mu.Lock()
	s.state = state
	s.history = history
	s.mu.Unlock()
}

// snapshot reads engine state. The caller holds turnMu, or no other
// reference to the session exists yet.
func snapshot(s *session) State {
	return State{
		ID:        s.id,
		Status:    s.eng.Status(),
		Frame:     s.eng.Frame(),
		Profile:   s.eng.Profile(),
		CreatedAt: s.createdAt,
		Failure:   s.eng.Failure(),
	}
}
