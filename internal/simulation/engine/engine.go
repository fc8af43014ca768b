// Package engine runs the turn algorithm for one simulation session: it
// consults the geography and knowledge providers, asks the decision
// provider for an action, applies the action, and appends the resulting
// frame and decision record.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindlab-sim/mindlab/internal/archive"
	"github.com/mindlab-sim/mindlab/internal/decision"
	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
	"github.com/mindlab-sim/mindlab/internal/geo"
	"github.com/mindlab-sim/mindlab/internal/platform/timeouts"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
	"github.com/mindlab-sim/mindlab/internal/simulation/event"
)

var tracer = otel.Tracer("github.com/mindlab-sim/mindlab/internal/simulation/engine")

// recentEventWindow caps how many event descriptions a frame carries.
const recentEventWindow = 5

// GeoResolver answers place and route queries.
type GeoResolver interface {
	Resolve(name string) (domain.Location, bool)
	Route(from, to string) (geo.Route, error)
	EscapeRoutes(from string, limit int) []geo.Route
}

// Knowledge answers queries about the historical record.
type Knowledge interface {
	EventsAt(ctx context.Context, year, month int, location string) ([]archive.Event, error)
	DangerAt(ctx context.Context, location string, year int) (archive.DangerReport, error)
}

// Policy holds the tunable constants of the turn algorithm.
type Policy struct {
	// TacticalStressThreshold is the stress level at or above which the
	// decision context includes ranked escape routes.
	TacticalStressThreshold int
	// SafeDangerThreshold is the danger level below which a location
	// counts as safe.
	SafeDangerThreshold int
	// MaxTurns ends the session as completed once reached.
	MaxTurns int
	// MaxRoutes caps how many escape routes enter the decision context.
	MaxRoutes int
	// SafeArrivalRelief is the stress drop on reaching a safe destination.
	// Arrival somewhere still dangerous changes nothing.
	SafeArrivalRelief int
	// ProviderTimeout caps a single provider call made inside a turn.
	// Zero disables the cap.
	ProviderTimeout time.Duration
}

// DefaultPolicy returns the standard turn policy.
func DefaultPolicy() Policy {
	return Policy{
		TacticalStressThreshold: 50,
		SafeDangerThreshold:     40,
		MaxTurns:                10,
		MaxRoutes:               3,
		SafeArrivalRelief:       30,
		ProviderTimeout:         timeouts.ProviderCall,
	}
}

// Config assembles an engine for one session.
type Config struct {
	Profile   domain.AgentProfile
	Start     domain.Location
	Stress    int
	Focus     string
	Inventory []string
	// Clock is the simulated in-world time at turn zero.
	Clock     time.Time
	Geo       GeoResolver
	Knowledge Knowledge
	Decider   decision.Provider
	Policy    Policy
	// Publish receives each emitted event. Nil disables emission.
	Publish func(eventType string, data map[string]any)
}

// Engine holds one session's simulation state. It is not safe for
// concurrent use; the caller serializes turns and reads.
type Engine struct {
	profile   domain.AgentProfile
	frame     domain.Frame
	decisions []domain.Decision
	status    domain.Status
	clock     time.Time
	failure   string

	geo       GeoResolver
	knowledge Knowledge
	decider   decision.Provider
	policy    Policy
	publish   func(eventType string, data map[string]any)
}

// New builds an engine at turn zero.
func New(cfg Config) (*Engine, error) {
	if cfg.Geo == nil || cfg.Knowledge == nil || cfg.Decider == nil {
		return nil, fmt.Errorf("geo, knowledge, and decider providers are required")
	}
	if cfg.Start.Name == "" {
		return nil, fmt.Errorf("starting location is required")
	}
	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	clock := cfg.Clock
	if clock.IsZero() {
		clock = time.Now().UTC()
	}

	return &Engine{
		profile: cfg.Profile,
		frame: domain.Frame{
			Turn:      0,
			Timestamp: clock,
			Location:  cfg.Start,
			Psych: domain.PsychState{
				Stress:      domain.ClampStress(cfg.Stress),
				Focus:       cfg.Focus,
				Personality: cfg.Profile.Personality,
			},
			Inventory: append([]string(nil), cfg.Inventory...),
		},
		status:    domain.StatusCreated,
		clock:     clock,
		geo:       cfg.Geo,
		knowledge: cfg.Knowledge,
		decider:   cfg.Decider,
		policy:    policy,
		publish:   cfg.Publish,
	}, nil
}

// Frame returns a copy of the current frame.
func (e *Engine) Frame() domain.Frame {
	return e.frame.Clone()
}

// Decisions returns a copy of the decision history.
func (e *Engine) Decisions() []domain.Decision {
	return append([]domain.Decision(nil), e.decisions...)
}

// Status returns the session's lifecycle state.
func (e *Engine) Status() domain.Status {
	return e.status
}

// Failure returns the recorded error message for a failed session.
func (e *Engine) Failure() string {
	return e.failure
}

// Clock returns the simulated in-world time.
func (e *Engine) Clock() time.Time {
	return e.clock
}

// Profile returns the agent profile.
func (e *Engine) Profile() domain.AgentProfile {
	return e.profile
}

// SetMaxTurns overrides the turn limit for a run.
func (e *Engine) SetMaxTurns(maxTurns int) {
	if maxTurns > 0 {
		e.policy.MaxTurns = maxTurns
	}
}

// MaxTurns returns the current turn limit.
func (e *Engine) MaxTurns() int {
	return e.policy.MaxTurns
}

// Step executes exactly one turn. Terminal sessions reject the call with
// an INVALID_STATE error. Provider failures inside the turn mark the
// session failed and are returned.
func (e *Engine) Step(ctx context.Context) (domain.Frame, error) {
	if !e.status.CanAdvance() {
		return domain.Frame{}, apperrors.New(apperrors.CodeInvalidState,
			fmt.Sprintf("session is %s and accepts no more turns", e.status))
	}

	turn := e.frame.Turn + 1
	ctx, span := tracer.Start(ctx, "simulation.turn", trace.WithAttributes(
		attribute.Int("simulation.turn", turn),
		attribute.String("simulation.location", e.frame.Location.Name),
	))
	defer span.End()

	e.status = domain.StatusRunning
	e.emit(event.TypeTurnStart, map[string]any{
		"turn":     turn,
		"location": e.frame.Location.Name,
		"time":     e.clock,
	})

	// A silent record is not an error; the turn proceeds without an event.
	eventDesc, threat := e.lookupEvent(ctx)

	psych := e.frame.Psych
	psych.AddStress(threat)

	dc := decision.Context{
		Location:  e.frame.Location.Name,
		Inventory: append([]string(nil), e.frame.Inventory...),
		Stress:    psych.Stress,
		Event:     eventDesc,
	}
	if psych.Stress >= e.policy.TacticalStressThreshold {
		dc.Routes = e.geo.EscapeRoutes(e.frame.Location.Name, e.policy.MaxRoutes)
	}
	e.emit(event.TypeAgentThinking, map[string]any{
		"turn":     turn,
		"location": dc.Location,
		"stress":   dc.Stress,
	})

	decideCtx, cancel := e.providerCtx(ctx)
	outcome, err := e.decider.Decide(decideCtx, dc)
	cancel()
	if err != nil {
		return e.fail(span, apperrors.Wrap(apperrors.CodeProviderFailure, "decision provider", err))
	}
	e.emit(event.TypeAgentDecision, map[string]any{
		"turn":      turn,
		"reasoning": outcome.Reasoning,
		"action":    outcome.Action,
	})

	location, detail, success := e.executeAction(outcome.Action, &psych)
	e.emit(event.TypeActionExecuted, map[string]any{
		"turn":    turn,
		"action":  outcome.Action,
		"success": success,
		"detail":  detail,
	})

	dangerCtx, cancel := e.providerCtx(ctx)
	report, err := e.knowledge.DangerAt(dangerCtx, location.Name, e.clock.Year())
	cancel()
	if err != nil {
		return e.fail(span, apperrors.Wrap(apperrors.CodeProviderFailure, "danger assessment", err))
	}
	if success && location.Name != e.frame.Location.Name && report.Level < e.policy.SafeDangerThreshold {
		psych.AddStress(-e.policy.SafeArrivalRelief)
	}

	recent := e.frame.RecentEvents
	if eventDesc != "" {
		recent = append(append([]string(nil), recent...), eventDesc)
		if len(recent) > recentEventWindow {
			recent = recent[len(recent)-recentEventWindow:]
		}
	}

	e.decisions = append(e.decisions, domain.Decision{
		Turn:      turn,
		Timestamp: e.clock,
		Location:  e.frame.Location.Name,
		Event:     eventDesc,
		Reasoning: outcome.Reasoning,
		Action:    outcome.Action,
		Stress:    dc.Stress,
	})
	e.frame = domain.Frame{
		Turn:         turn,
		Timestamp:    e.clock,
		Location:     location,
		Psych:        psych,
		Inventory:    append([]string(nil), e.frame.Inventory...),
		RecentEvents: recent,
	}
	e.emit(event.TypeStateUpdate, map[string]any{
		"turn":     turn,
		"location": location.Name,
		"stress":   psych.Stress,
		"time":     e.clock,
		"status":   string(e.status),
	})

	switch {
	case report.Level < e.policy.SafeDangerThreshold:
		e.status = domain.StatusCompleted
		e.emit(event.TypeSimulationCompleted, map[string]any{
			"turn":     turn,
			"location": location.Name,
			"reason":   "reached safety",
		})
	case turn >= e.policy.MaxTurns:
		e.status = domain.StatusCompleted
		e.emit(event.TypeSimulationCompleted, map[string]any{
			"turn":     turn,
			"location": location.Name,
			"reason":   "turn limit reached",
		})
	}

	return e.frame.Clone(), nil
}

// lookupEvent picks the highest-threat recorded event for the current
// location and simulated date. Lookup failures degrade to a silent record.
func (e *Engine) lookupEvent(ctx context.Context) (string, int) {
	lookupCtx, cancel := e.providerCtx(ctx)
	defer cancel()
	events, err := e.knowledge.EventsAt(lookupCtx, e.clock.Year(), int(e.clock.Month()), e.frame.Location.Name)
	if err != nil {
		log.Printf("event lookup for %s failed: %v", e.frame.Location.Name, err)
		return "", 0
	}
	if len(events) == 0 {
		return "", 0
	}
	top := events[0]
	desc := top.Title
	if top.Description != "" {
		desc = fmt.Sprintf("%s: %s", top.Title, top.Description)
	}
	e.emit(event.TypeHistoricalEvent, map[string]any{
		"turn":        e.frame.Turn + 1,
		"title":       top.Title,
		"description": top.Description,
		"threat":      top.ThreatLevel,
	})
	return desc, top.ThreatLevel
}

// executeAction applies the chosen action to the simulated clock, the
// location, and the psych state. An unresolvable move target fails the
// action but not the turn.
func (e *Engine) executeAction(action string, psych *domain.PsychState) (domain.Location, string, bool) {
	if target, ok := strings.CutPrefix(action, "move_to:"); ok {
		target = strings.TrimSpace(target)
		route, err := e.geo.Route(e.frame.Location.Name, target)
		if err != nil {
			e.clock = e.clock.Add(2 * time.Hour)
			return e.frame.Location, fmt.Sprintf("no route to %s", target), false
		}
		e.clock = e.clock.Add(time.Duration(route.BoatHours * float64(time.Hour)))
		return route.Destination, route.Describe(), true
	}

	switch {
	case action == "gather_information":
		psych.AddStress(-5)
		e.clock = e.clock.Add(2 * time.Hour)
	case action == "seek_shelter":
		psych.AddStress(-10)
		e.clock = e.clock.Add(1 * time.Hour)
	case strings.HasPrefix(action, "interact:"):
		psych.AddStress(-5)
		e.clock = e.clock.Add(1 * time.Hour)
	default:
		// wait and anything unrecognized just passes time.
		e.clock = e.clock.Add(2 * time.Hour)
	}
	return e.frame.Location, action, true
}

// providerCtx bounds one provider call when the policy sets a timeout.
func (e *Engine) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.policy.ProviderTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.policy.ProviderTimeout)
}

func (e *Engine) fail(span trace.Span, err error) (domain.Frame, error) {
	span.RecordError(err)
	e.status = domain.StatusFailed
	e.failure = err.Error()
	e.emit(event.TypeSimulationError, map[string]any{
		"error": err.Error(),
	})
	return e.frame.Clone(), err
}

func (e *Engine) emit(eventType string, data map[string]any) {
	if e.publish == nil {
		return
	}
	e.publish(eventType, data)
}
