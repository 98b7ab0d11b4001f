package search

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayafamilly/carpool-core/internal/cache"
	"github.com/kayafamilly/carpool-core/internal/geo"
	"github.com/kayafamilly/carpool-core/internal/models"
)

func TestSearchRidesByAttributeOrdersByDepartureAscending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := New(mock, geo.NewRedisGeoIndex(nil), cache.New(nil))

	rideID := uuid.New()
	driverID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, driver_id, airport_id, direction, departure_at, seats_total, seats_left,
		       luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
		FROM rides WHERE airport_id = $1 AND status = 'active' AND departure_at > now()
		ORDER BY departure_at ASC
		LIMIT $2 OFFSET $3
	`)).WithArgs("LHR", 20, 0).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "driver_id", "airport_id", "direction", "departure_at", "seats_total", "seats_left",
			"luggage_total", "luggage_left", "price_per_seat", "status", "comment", "created_at", "updated_at"},
	).AddRow(rideID, driverID, "LHR", models.DirectionHomeToAirport, now, 3, 3, 2, 2, int64(1500), models.RideActive, nil, now, now))

	results, err := svc.searchRidesByAttribute(context.Background(), models.SearchRidesRequest{AirportID: "LHR"}, 0, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rideID, results[0].Ride.ID)
	assert.Nil(t, results[0].DistanceMeters)
}

func TestHaversineDistanceIsPositiveForDistinctPoints(t *testing.T) {
	pickup := models.GeoPoint{Lat: 51.5074, Lon: -0.1278}
	location := models.GeoPoint{Lat: 51.47, Lon: -0.4543}

	assert.Greater(t, geo.HaversineM(pickup, location), 0.0)
}
