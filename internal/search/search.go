// Package search implements geospatial + attribute-filtered ride/request
// search with caching (spec section 4.7). Grounded on the pack's
// fetch-then-rank matching shape and the teacher's search-query style,
// combining a GeoIndex candidate fetch (which supplies the distance order
// and distances for rides) with attribute filters; request results get a
// Haversine distance from the pickup point.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kayafamilly/carpool-core/internal/cache"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/geo"
	"github.com/kayafamilly/carpool-core/internal/models"
)

const (
	defaultRadiusMeters = 8000.0
	defaultLimit        = 20
	maxLimit            = 100
	searchCacheTTL      = 30 * time.Second
)

// Service is the SearchService (spec section 4.7).
type Service struct {
	db    database.DBPool
	index geo.GeoIndex
	cache cache.Layer
}

// New builds a search Service.
func New(db database.DBPool, index geo.GeoIndex, cacheLayer cache.Layer) *Service {
	return &Service{db: db, index: index, cache: cacheLayer}
}

// SearchRides implements the ride-search contract: distance-ordered when
// pickupPoint is present, departureAt-ordered otherwise; projections always
// exclude the full route polyline.
func (s *Service) SearchRides(ctx context.Context, req models.SearchRidesRequest) ([]models.RideSearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	radius := req.RadiusMeters
	if radius <= 0 {
		radius = defaultRadiusMeters
	}

	cacheKey := fmt.Sprintf("search:rides:%+v", req)
	var cached []models.RideSearchResult
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	var results []models.RideSearchResult
	var err error

	if req.PickupPoint != nil {
		results, err = s.searchRidesByDistance(ctx, req, *req.PickupPoint, radius, limit)
	} else {
		results, err = s.searchRidesByAttribute(ctx, req, (page-1)*limit, limit)
	}
	if err != nil {
		return nil, err
	}

	_ = s.cache.Set(ctx, cacheKey, results, searchCacheTTL)
	return results, nil
}

func (s *Service) searchRidesByDistance(ctx context.Context, req models.SearchRidesRequest, point models.GeoPoint, radius float64, limit int) ([]models.RideSearchResult, error) {
	candidates, err := s.index.Nearby(ctx, "rides", point, radius, limit*3)
	if err != nil {
		return nil, err
	}

	out := make([]models.RideSearchResult, 0, len(candidates))
	for _, c := range candidates {
		ride, err := s.loadRideForSearch(ctx, c.ID, req)
		if err != nil || ride == nil {
			continue
		}
		dist := c.DistanceMeters
		out = append(out, models.RideSearchResult{Ride: *ride, DistanceMeters: &dist})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Service) loadRideForSearch(ctx context.Context, rideID uuid.UUID, req models.SearchRidesRequest) (*models.Ride, error) {
	where := `WHERE id = $1 AND airport_id = $2`
	args := []any{rideID, req.AirportID}
	argN := 3

	if req.Direction != nil {
		where += fmt.Sprintf(" AND direction = $%d", argN)
		args = append(args, *req.Direction)
		argN++
	}
	if req.MinSeats > 0 {
		where += fmt.Sprintf(" AND seats_left >= $%d", argN)
		args = append(args, req.MinSeats)
		argN++
	}
	if req.Date != nil {
		where += fmt.Sprintf(" AND departure_at::date = $%d::date", argN)
		args = append(args, *req.Date)
		argN++
	} else {
		where += " AND departure_at > now()"
	}
	where += " AND status = 'active'"

	var r models.Ride
	err := s.db.QueryRow(ctx, `
		SELECT id, driver_id, airport_id, direction, departure_at, seats_total, seats_left,
		       luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
		FROM rides `+where, args...).Scan(&r.ID, &r.DriverID, &r.AirportID, &r.Direction, &r.DepartureAt,
		&r.SeatsTotal, &r.SeatsLeft, &r.LuggageTotal, &r.LuggageLeft, &r.PricePerSeat, &r.Status, &r.Comment,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) searchRidesByAttribute(ctx context.Context, req models.SearchRidesRequest, offset, limit int) ([]models.RideSearchResult, error) {
	where := `WHERE airport_id = $1 AND status = 'active'`
	args := []any{req.AirportID}
	argN := 2

	if req.Direction != nil {
		where += fmt.Sprintf(" AND direction = $%d", argN)
		args = append(args, *req.Direction)
		argN++
	}
	if req.MinSeats > 0 {
		where += fmt.Sprintf(" AND seats_left >= $%d", argN)
		args = append(args, req.MinSeats)
		argN++
	}
	if req.Date != nil {
		where += fmt.Sprintf(" AND departure_at::date = $%d::date", argN)
		args = append(args, *req.Date)
		argN++
	} else {
		where += " AND departure_at > now()"
	}

	args = append(args, limit, offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id, driver_id, airport_id, direction, departure_at, seats_total, seats_left,
		       luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
		FROM rides %s
		ORDER BY departure_at ASC
		LIMIT $%d OFFSET $%d
	`, where, argN, argN+1), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RideSearchResult
	for rows.Next() {
		var r models.Ride
		if err := rows.Scan(&r.ID, &r.DriverID, &r.AirportID, &r.Direction, &r.DepartureAt, &r.SeatsTotal,
			&r.SeatsLeft, &r.LuggageTotal, &r.LuggageLeft, &r.PricePerSeat, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, models.RideSearchResult{Ride: r})
	}
	return out, nil
}

// SearchRequests implements the driver-side request search: excludes
// expired/non-pending requests, annotates hasUserOffered for the querying
// driver.
func (s *Service) SearchRequests(ctx context.Context, driverID uuid.UUID, req models.SearchRequestsRequest) ([]models.RequestSearchResult, error) {
	where := `WHERE r.status = 'pending' AND r.expires_at > now()`
	args := []any{}
	argN := 1

	if req.AirportID != nil {
		where += fmt.Sprintf(" AND r.airport_id = $%d", argN)
		args = append(args, *req.AirportID)
		argN++
	}
	if req.Direction != nil {
		where += fmt.Sprintf(" AND r.direction = $%d", argN)
		args = append(args, *req.Direction)
		argN++
	}
	if req.City != nil {
		where += fmt.Sprintf(" AND r.location_city = $%d", argN)
		args = append(args, *req.City)
		argN++
	}
	if req.Date != nil {
		where += fmt.Sprintf(" AND r.preferred_at::date = $%d::date", argN)
		args = append(args, *req.Date)
		argN++
	}

	args = append(args, driverID)
	driverArg := argN
	argN++

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT r.id, r.passenger_id, r.airport_id, r.direction, r.preferred_at, r.flexibility_minutes,
		       r.seats_needed, r.luggage, r.status, r.payment_status, r.expires_at, r.created_at, r.updated_at,
		       r.location_lon, r.location_lat,
		       EXISTS(SELECT 1 FROM offers o WHERE o.request_id = r.id AND o.driver_id = $%d) AS has_user_offered
		FROM ride_requests r %s
		ORDER BY r.preferred_at ASC
		LIMIT 100
	`, driverArg, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RequestSearchResult
	for rows.Next() {
		var rr models.RequestSearchResult
		var lon, lat float64
		if err := rows.Scan(&rr.ID, &rr.PassengerID, &rr.AirportID, &rr.Direction, &rr.PreferredAt,
			&rr.FlexibilityMins, &rr.SeatsNeeded, &rr.Luggage, &rr.Status, &rr.PaymentStatus, &rr.ExpiresAt,
			&rr.CreatedAt, &rr.UpdatedAt, &lon, &lat, &rr.HasUserOffered); err != nil {
			return nil, err
		}
		rr.Location.Location = models.GeoPoint{Lon: lon, Lat: lat}
		if req.PickupPoint != nil {
			dist := geo.HaversineM(*req.PickupPoint, rr.Location.Location)
			rr.DistanceMeters = &dist
		}
		out = append(out, rr)
	}
	return out, nil
}
