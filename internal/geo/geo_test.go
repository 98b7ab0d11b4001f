package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kayafamilly/carpool-core/internal/models"
)

func TestHaversineMZeroDistance(t *testing.T) {
	p := models.GeoPoint{Lat: 51.4700, Lon: -0.4543}
	assert.InDelta(t, 0, HaversineM(p, p), 1e-6)
}

func TestHaversineMKnownPair(t *testing.T) {
	// Heathrow (LHR) to central London, roughly 24km.
	lhr := models.GeoPoint{Lat: 51.4700, Lon: -0.4543}
	central := models.GeoPoint{Lat: 51.5074, Lon: -0.1278}

	d := HaversineM(lhr, central)
	assert.Greater(t, d, 20_000.0)
	assert.Less(t, d, 28_000.0)
}

func TestRouteDistanceMSumsLegs(t *testing.T) {
	a := models.GeoPoint{Lat: 51.50, Lon: -0.12}
	b := models.GeoPoint{Lat: 51.51, Lon: -0.13}
	c := models.GeoPoint{Lat: 51.52, Lon: -0.14}

	route := []models.GeoPoint{a, b, c}
	expected := HaversineM(a, b) + HaversineM(b, c)
	assert.InDelta(t, expected, RouteDistanceM(route), 1e-6)
}

func TestFindBestInsertionIndexPicksCheapestSlot(t *testing.T) {
	route := []models.GeoPoint{
		{Lat: 51.50, Lon: -0.10},
		{Lat: 51.47, Lon: -0.45}, // airport
	}
	// A stop just past the first point, on the way to the airport, is
	// cheapest inserted between the two points, at index 1.
	stop := models.GeoPoint{Lat: 51.499, Lon: -0.101}

	idx, added := FindBestInsertionIndex(route, stop)
	assert.Equal(t, 1, idx)
	assert.False(t, math.IsNaN(added))
	assert.GreaterOrEqual(t, added, 0.0)
}
