// Package archive defines the Knowledge Base Provider: the historical record
// the simulation consults for period events and danger assessments.
package archive

import "context"

// Event is one entry from the historical record.
type Event struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Location    string `json:"location"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ThreatLevel int    `json:"threat_level"`
}

// DangerReport is the archive's assessment of a location at a point in time.
type DangerReport struct {
	Location  string `json:"location"`
	Level     int    `json:"danger_level"`
	Safe      bool   `json:"is_safe"`
	Reasoning string `json:"reasoning"`
}

// SafeDangerThreshold is the danger level below which a location counts as
// safe for the simulated agent.
const SafeDangerThreshold = 40

// Archive answers queries about the historical record.
type Archive interface {
	// EventsAt returns the events recorded at a location for the given
	// year and month. An empty slice means the record is silent.
	EventsAt(ctx context.Context, year, month int, location string) ([]Event, error)

	// DangerAt assesses how dangerous a location is in the given year.
	// Locations absent from the record yield a cautious middle estimate
	// rather than an error.
	DangerAt(ctx context.Context, location string, year int) (DangerReport, error)
}
