// Package event carries simulation events from the engine to push-channel
// subscribers.
package event

import "time"

// Event types emitted over a session's push channel.
const (
	TypeConnectionEstablished = "connection_established"
	TypeSimulationStarted     = "simulation_started"
	TypeTurnStart             = "turn_start"
	TypeHistoricalEvent       = "historical_event"
	TypeAgentThinking         = "agent_thinking"
	TypeAgentDecision         = "agent_decision"
	TypeActionExecuted        = "action_executed"
	TypeStateUpdate           = "state_update"
	TypeSimulationCompleted   = "simulation_completed"
	TypeSimulationError       = "simulation_error"
)

// Event is one frame on a session's push channel.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}
