package airport

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayafamilly/carpool-core/internal/models"
)

func setupCatalog(t *testing.T) (*Catalog, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return New(mock), mock
}

func TestGetReturnsNotFoundForUnknownCode(t *testing.T) {
	catalog, mock := setupCatalog(t)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, iata_code, icao_code, name, city, country, country_code,
		       location_lon, location_lat, type, aliases, is_active
		FROM airports WHERE iata_code = $1
	`)).WithArgs("ZZZ").WillReturnRows(pgxmock.NewRows([]string{
		"id", "iata_code", "icao_code", "name", "city", "country", "country_code",
		"location_lon", "location_lat", "type", "aliases", "is_active",
	}))

	_, err := catalog.Get(context.Background(), "zzz")
	require.Error(t, err)
}

func TestSearchByTextUppercasesAndWrapsPattern(t *testing.T) {
	catalog, mock := setupCatalog(t)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, iata_code, icao_code, name, city, country, country_code,
		       location_lon, location_lat, type, aliases, is_active
		FROM airports
		WHERE is_active = true AND (
			iata_code ILIKE $1 OR icao_code ILIKE $1 OR name ILIKE $1 OR
			city ILIKE $1 OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE a ILIKE $1)
		)
		ORDER BY iata_code ASC
		LIMIT $2
	`)).WithArgs("%LONDON%", defaultSearchLimit).WillReturnRows(pgxmock.NewRows([]string{
		"id", "iata_code", "icao_code", "name", "city", "country", "country_code",
		"location_lon", "location_lat", "type", "aliases", "is_active",
	}).AddRow("lhr", "LHR", nil, "Heathrow", "London", "United Kingdom", "GB",
		-0.4543, 51.4700, models.AirportLarge, []string{}, true))

	results, err := catalog.SearchByText(context.Background(), "london", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "LHR", results[0].IATACode)
}

func TestSearchNearbyFiltersByRadiusAndSortsByDistance(t *testing.T) {
	catalog, mock := setupCatalog(t)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, iata_code, icao_code, name, city, country, country_code,
		       location_lon, location_lat, type, aliases, is_active
		FROM airports WHERE is_active = true
	`)).WillReturnRows(pgxmock.NewRows([]string{
		"id", "iata_code", "icao_code", "name", "city", "country", "country_code",
		"location_lon", "location_lat", "type", "aliases", "is_active",
	}).AddRow("lgw", "LGW", nil, "Gatwick", "London", "United Kingdom", "GB",
		-0.1821, 51.1537, models.AirportLarge, []string{}, true).
		AddRow("lhr", "LHR", nil, "Heathrow", "London", "United Kingdom", "GB",
			-0.4543, 51.4700, models.AirportLarge, []string{}, true))

	center := models.GeoPoint{Lat: 51.5074, Lon: -0.1278}
	results, err := catalog.SearchNearby(context.Background(), center, 60000, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "LHR", results[0].IATACode, "closer airport should sort first")
}
