// Package geo provides the Geography Provider for the simulation: geocoding
// of ancient place names, great-circle distances, bearings, and period
// travel-time estimates.
package geo

import (
	"math"

	"github.com/mindlab-sim/mindlab/internal/simulation/domain"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Mode is a sixth-century transportation mode.
type Mode string

const (
	ModeFoot  Mode = "foot"
	ModeHorse Mode = "horse"
	ModeBoat  Mode = "boat"
	ModeCart  Mode = "cart"
)

// Terrain adjusts travel time for the ground covered.
type Terrain string

const (
	TerrainFlat      Terrain = "flat"
	TerrainHills     Terrain = "hills"
	TerrainMountains Terrain = "mountains"
	TerrainRiver     Terrain = "river"
)

// Sustained speeds in km/h for the Northern and Southern Dynasties period.
var modeSpeeds = map[Mode]float64{
	ModeFoot:  4.0,
	ModeHorse: 8.0,
	ModeBoat:  5.0,
	ModeCart:  3.0,
}

var terrainModifiers = map[Terrain]float64{
	TerrainFlat:      1.0,
	TerrainHills:     1.5,
	TerrainMountains: 2.5,
	TerrainRiver:     0.8,
}

// Distance computes the great-circle distance between two points in
// kilometers using the haversine formula. Accuracy is within ±0.5% for
// distances under 1000 km, sufficient for historical navigation.
func Distance(a, b domain.Location) float64 {
	lat1 := radians(a.Lat)
	lon1 := radians(a.Lon)
	lat2 := radians(b.Lat)
	lon2 := radians(b.Lon)

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// InitialBearing computes the starting bearing from a to b in degrees
// clockwise from true north, normalized to [0, 360).
func InitialBearing(a, b domain.Location) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dlon := radians(b.Lon - a.Lon)

	x := math.Sin(dlon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

var compassDirections = []string{
	"north", "north-northeast", "northeast", "east-northeast",
	"east", "east-southeast", "southeast", "south-southeast",
	"south", "south-southwest", "southwest", "west-southwest",
	"west", "west-northwest", "northwest", "north-northwest",
}

// CardinalDirection converts a bearing into one of sixteen compass winds.
func CardinalDirection(bearing float64) string {
	bearing = math.Mod(bearing, 360)
	if bearing < 0 {
		bearing += 360
	}
	idx := int(math.Round(bearing/22.5)) % len(compassDirections)
	return compassDirections[idx]
}

// TravelHours estimates travel time in hours for the given mode and terrain.
// Unknown modes fall back to walking pace; unknown terrain to flat ground.
func TravelHours(distanceKm float64, mode Mode, terrain Terrain) float64 {
	speed, ok := modeSpeeds[mode]
	if !ok {
		speed = modeSpeeds[ModeFoot]
	}
	modifier, ok := terrainModifiers[terrain]
	if !ok {
		modifier = terrainModifiers[TerrainFlat]
	}
	return distanceKm / speed * modifier
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
