package geo

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/mindlab-sim/mindlab/internal/errors"
	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
)

// Place is one gazetteer entry. Neighbors list the historically plausible
// escape destinations from this place; River marks places reached primarily
// by water.
type Place struct {
	Name      string
	Aliases   []string
	Lat       float64
	Lon       float64
	Neighbors []string
	River     bool
}

// Route describes the path between two resolved places.
type Route struct {
	Origin      domain.Location
	Destination domain.Location
	DistanceKm  float64
	Bearing     float64
	Direction   string
	FootHours   float64
	BoatHours   float64
	HorseHours  float64
}

// Describe renders the route as prose suitable for a decision prompt.
func (r Route) Describe() string {
	return fmt.Sprintf(
		"From %s to %s: %.1f km %s; about %.1f days on foot, %.1f days by boat, %.1f days on horseback.",
		r.Origin.Name, r.Destination.Name, r.DistanceKm, r.Direction,
		r.FootHours/24, r.BoatHours/24, r.HorseHours/24,
	)
}

// Gazetteer resolves ancient place names, including aliases in the original
// script, and plans routes between them. It is immutable after construction
// and safe for concurrent use.
type Gazetteer struct {
	places  map[string]Place
	aliases map[string]string
}

// NewGazetteer builds a gazetteer from place entries. Both canonical names
// and aliases resolve case-insensitively.
func NewGazetteer(places []Place) *Gazetteer {
	g := &Gazetteer{
		places:  make(map[string]Place, len(places)),
		aliases: make(map[string]string),
	}
	for _, place := range places {
		key := nameKey(place.Name)
		if key == "" {
			continue
		}
		g.places[key] = place
		for _, alias := range place.Aliases {
			if aliasKey := nameKey(alias); aliasKey != "" {
				g.aliases[aliasKey] = key
			}
		}
	}
	return g
}

// Resolve maps an ancient place name to its location.
func (g *Gazetteer) Resolve(name string) (domain.Location, bool) {
	place, ok := g.lookup(name)
	if !ok {
		return domain.Location{}, false
	}
	return domain.Location{Name: place.Name, Lat: place.Lat, Lon: place.Lon}, true
}

// Route plans a route between two places. Either name failing to resolve
// yields an UNKNOWN_LOCATION error.
func (g *Gazetteer) Route(from, to string) (Route, error) {
	origin, ok := g.lookup(from)
	if !ok {
		return Route{}, apperrors.New(apperrors.CodeUnknownLocation, fmt.Sprintf("unknown location: %s", from))
	}
	destination, ok := g.lookup(to)
	if !ok {
		return Route{}, apperrors.New(apperrors.CodeUnknownLocation, fmt.Sprintf("unknown location: %s", to))
	}

	originLoc := domain.Location{Name: origin.Name, Lat: origin.Lat, Lon: origin.Lon}
	destLoc := domain.Location{Name: destination.Name, Lat: destination.Lat, Lon: destination.Lon}

	distance := Distance(originLoc, destLoc)
	bearing := InitialBearing(originLoc, destLoc)

	boatTerrain := TerrainFlat
	if origin.River || destination.River {
		boatTerrain = TerrainRiver
	}

	return Route{
		Origin:      originLoc,
		Destination: destLoc,
		DistanceKm:  distance,
		Bearing:     bearing,
		Direction:   CardinalDirection(bearing),
		FootHours:   TravelHours(distance, ModeFoot, TerrainFlat),
		BoatHours:   TravelHours(distance, ModeBoat, boatTerrain),
		HorseHours:  TravelHours(distance, ModeHorse, TerrainFlat),
	}, nil
}

// EscapeRoutes returns routes to the neighbors of a place, ranked by
// distance ascending. Neighbors that fail to resolve are skipped. An
// unknown origin yields no routes.
func (g *Gazetteer) EscapeRoutes(from string, limit int) []Route {
	origin, ok := g.lookup(from)
	if !ok {
		return nil
	}

	routes := make([]Route, 0, len(origin.Neighbors))
	for _, neighbor := range origin.Neighbors {
		route, err := g.Route(origin.Name, neighbor)
		if err != nil {
			continue
		}
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].DistanceKm < routes[j].DistanceKm
	})
	if limit > 0 && len(routes) > limit {
		routes = routes[:limit]
	}
	return routes
}

func (g *Gazetteer) lookup(name string) (Place, bool) {
	key := nameKey(name)
	if canonical, ok := g.aliases[key]; ok {
		key = canonical
	}
	place, ok := g.places[key]
	return place, ok
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
