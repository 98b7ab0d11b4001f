// Package airport implements the read-mostly AirportCatalog: text and geo
// search over active airports (spec section 2/3). Grounded on the teacher's
// read-path query style (ILIKE filters, ORDER BY + LIMIT) generalized to
// airports, plus internal/geo for the geo-search branch.
package airport

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/geo"
	"github.com/kayafamilly/carpool-core/internal/models"
)

const defaultSearchLimit = 20

// Catalog is the AirportCatalog contract.
type Catalog struct {
	db database.DBPool
}

// New builds an airport Catalog.
func New(db database.DBPool) *Catalog {
	return &Catalog{db: db}
}

// Get loads a single active-or-not airport by IATA code.
func (c *Catalog) Get(ctx context.Context, iataCode string) (*models.Airport, error) {
	var a models.Airport
	var lon, lat float64
	var aliases []string

	err := c.db.QueryRow(ctx, `
		SELECT id, iata_code, icao_code, name, city, country, country_code,
		       location_lon, location_lat, type, aliases, is_active
		FROM airports WHERE iata_code = $1
	`, strings.ToUpper(iataCode)).Scan(&a.ID, &a.IATACode, &a.ICAOCode, &a.Name, &a.City, &a.Country,
		&a.CountryCode, &lon, &lat, &a.Type, &aliases, &a.IsActive)
	if err != nil {
		return nil, apperr.NotFound("airport not found")
	}
	a.Location = models.GeoPoint{Lon: lon, Lat: lat}
	a.Aliases = aliases
	return &a, nil
}

// SearchByText matches against IATA/ICAO code, name, city, or any alias,
// active airports only, ordered by IATA code for determinism.
func (c *Catalog) SearchByText(ctx context.Context, query string, limit int) ([]models.Airport, error) {
	if limit <= 0 || limit > defaultSearchLimit {
		limit = defaultSearchLimit
	}
	pattern := "%" + strings.ToUpper(strings.TrimSpace(query)) + "%"

	rows, err := c.db.Query(ctx, `
		SELECT id, iata_code, icao_code, name, city, country, country_code,
		       location_lon, location_lat, type, aliases, is_active
		FROM airports
		WHERE is_active = true AND (
			iata_code ILIKE $1 OR icao_code ILIKE $1 OR name ILIKE $1 OR
			city ILIKE $1 OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE a ILIKE $1)
		)
		ORDER BY iata_code ASC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, apperr.ValidationWrap("search airports failed", err)
	}
	defer rows.Close()

	return scanAirports(rows)
}

// SearchNearby returns active airports within radiusMeters of point, nearest
// first, computed via exact Haversine distance over the (small) catalog
// rather than a geo index — the airport table is static and small enough
// that a full scan with client-side ranking beats maintaining a second
// geo-index for it.
func (c *Catalog) SearchNearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, limit int) ([]models.Airport, error) {
	if limit <= 0 || limit > defaultSearchLimit {
		limit = defaultSearchLimit
	}

	rows, err := c.db.Query(ctx, `
		SELECT id, iata_code, icao_code, name, city, country, country_code,
		       location_lon, location_lat, type, aliases, is_active
		FROM airports WHERE is_active = true
	`)
	if err != nil {
		return nil, apperr.ValidationWrap("list airports failed", err)
	}
	all, err := scanAirports(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	type scored struct {
		airport  models.Airport
		distance float64
	}
	var nearby []scored
	for _, a := range all {
		d := geo.HaversineM(point, a.Location)
		if d <= radiusMeters {
			nearby = append(nearby, scored{a, d})
		}
	}
	for i := 1; i < len(nearby); i++ {
		for j := i; j > 0 && nearby[j].distance < nearby[j-1].distance; j-- {
			nearby[j], nearby[j-1] = nearby[j-1], nearby[j]
		}
	}
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}

	out := make([]models.Airport, len(nearby))
	for i, s := range nearby {
		out[i] = s.airport
	}
	return out, nil
}

func scanAirports(rows pgx.Rows) ([]models.Airport, error) {
	var out []models.Airport
	for rows.Next() {
		var a models.Airport
		var lon, lat float64
		var aliases []string
		if err := rows.Scan(&a.ID, &a.IATACode, &a.ICAOCode, &a.Name, &a.City, &a.Country,
			&a.CountryCode, &lon, &lat, &a.Type, &aliases, &a.IsActive); err != nil {
			return nil, apperr.ValidationWrap("scan airport failed", err)
		}
		a.Location = models.GeoPoint{Lon: lon, Lat: lat}
		a.Aliases = aliases
		out = append(out, a)
	}
	return out, nil
}
