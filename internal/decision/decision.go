// Package decision defines the Decision Provider: the component that picks
// the agent's next action each turn. A scripted provider ships for tests
// and offline runs; the prompt and outcome parser support model-backed
// providers.
package decision

import (
	"context"

	"github.com/mindlab-sim/mindlab/internal/geo"
)

// Context is everything the provider sees when deciding a turn.
type Context struct {
	Location  string
	Inventory []string
	Stress    int
	// Event describes the historical event unfolding this turn. Empty
	// when the record is silent.
	Event string
	// Routes lists escape routes ranked nearest first. Populated only
	// when the agent is stressed enough to plan tactically.
	Routes []geo.Route
}

// Outcome is the provider's chosen action with its reasoning.
type Outcome struct {
	Reasoning string `json:"reasoning"`
	Action    string `json:"next_action"`
}

// Provider decides the agent's next action.
type Provider interface {
	Decide(ctx context.Context, dc Context) (Outcome, error)
}
