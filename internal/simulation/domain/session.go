package domain

// Status describes the lifecycle state of a simulation session.
type Status string

const (
	// StatusCreated indicates the session exists but no turn has run.
	StatusCreated Status = "created"
	// StatusRunning indicates at least one turn has started.
	StatusRunning Status = "running"
	// StatusCompleted indicates the agent reached safety or the turn limit.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a turn errored; the session accepts no more turns.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status accepts no further turns.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvance reports whether a start or step command is legal in this status.
func (s Status) CanAdvance() bool {
	return s == StatusCreated || s == StatusRunning
}
