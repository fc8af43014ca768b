// Package scenario loads simulation datasets: the gazetteer places, the
// historical event timeline, and the default agent. A dataset is a YAML
// document; the Hou Jing rebellion scenario ships embedded as the default.
package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mindlab-sim/mindlab/internal/geo"
)

//go:embed houjing.yaml
var houjingYAML []byte

// PlaceSpec is one gazetteer entry in a dataset.
type PlaceSpec struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Lat         float64  `yaml:"lat"`
	Lon         float64  `yaml:"lon"`
	Danger      int      `yaml:"danger"`
	SafeFrom    int      `yaml:"safe_from"`
	SafeUntil   int      `yaml:"safe_until"`
	Description string   `yaml:"description"`
	Neighbors   []string `yaml:"neighbors"`
	River       bool     `yaml:"river"`
}

// EventSpec is one historical event in a dataset.
type EventSpec struct {
	Year        int    `yaml:"year"`
	Month       int    `yaml:"month"`
	Location    string `yaml:"location"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Threat      int    `yaml:"threat"`
}

// AgentSpec holds the default agent profile for a dataset.
type AgentSpec struct {
	Name             string   `yaml:"name"`
	BirthYear        int      `yaml:"birth_year"`
	Personality      string   `yaml:"personality"`
	Values           []string `yaml:"values"`
	Focus            string   `yaml:"focus"`
	StartingLocation string   `yaml:"starting_location"`
	StartingStress   int      `yaml:"starting_stress"`
	Inventory        []string `yaml:"inventory"`
}

// Scenario is a full simulation dataset.
type Scenario struct {
	Name      string      `yaml:"name"`
	StartTime time.Time   `yaml:"start_time"`
	Agent     AgentSpec   `yaml:"agent"`
	Places    []PlaceSpec `yaml:"places"`
	Events    []EventSpec `yaml:"events"`
}

// Default returns the embedded Hou Jing rebellion scenario.
func Default() (*Scenario, error) {
	return Load(bytes.NewReader(houjingYAML))
}

// LoadFile reads a scenario dataset from a YAML file on disk.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a scenario dataset from YAML.
func Load(r io.Reader) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if len(s.Places) == 0 {
		return nil, fmt.Errorf("scenario %q has no places", s.Name)
	}
	if s.StartTime.IsZero() {
		return nil, fmt.Errorf("scenario %q has no start time", s.Name)
	}
	return &s, nil
}

// GazetteerPlaces converts the dataset's places into gazetteer entries.
func (s *Scenario) GazetteerPlaces() []geo.Place {
	places := make([]geo.Place, 0, len(s.Places))
	for _, spec := range s.Places {
		places = append(places, geo.Place{
			Name:      spec.Name,
			Aliases:   spec.Aliases,
			Lat:       spec.Lat,
			Lon:       spec.Lon,
			Neighbors: spec.Neighbors,
			River:     spec.River,
		})
	}
	return places
}
