package domain

import "time"

// Location is a named geographic position. It changes only as the result of
// a successful move action.
type Location struct {
	Name string
	Lat  float64
	Lon  float64
}

// Frame is a snapshot of the session at a given turn. The session holds
// exactly one current frame; older frames stay in history.
type Frame struct {
	Turn         int
	Timestamp    time.Time
	Location     Location
	Psych        PsychState
	Inventory    []string
	RecentEvents []string
}

// Clone returns a deep copy so callers can hand frames across goroutine
// boundaries without sharing slices.
func (f Frame) Clone() Frame {
	clone := f
	clone.Inventory = append([]string(nil), f.Inventory...)
	clone.RecentEvents = append([]string(nil), f.RecentEvents...)
	return clone
}

// Decision is one append-only history entry recorded per completed turn.
type Decision struct {
	Turn      int
	Timestamp time.Time
	Location  string
	Event     string
	Reasoning string
	Action    string
	Stress    int
}
