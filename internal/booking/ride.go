package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/models"
)

// CreateRide publishes a new Ride (spec section 3/4.5 — BookingEngine owns
// ride lifecycle alongside the booking state machine).
func (e *Engine) CreateRide(ctx context.Context, driverID uuid.UUID, req models.CreateRideRequest) (*models.Ride, error) {
	if !req.DepartureAt.After(e.clock.Now()) {
		return nil, apperr.Validation("departure must be in the future")
	}

	var r models.Ride
	id := uuid.New()
	err := e.db.QueryRow(ctx, `
		INSERT INTO rides (id, driver_id, airport_id, direction, home_address, home_postcode, home_city,
		                    home_location_lon, home_location_lat, departure_at, seats_total, seats_left,
		                    luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $12, $12, $13, 'active', $14, now(), now())
		RETURNING id, driver_id, airport_id, direction, departure_at, seats_total, seats_left,
		          luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
	`, id, driverID, req.AirportID, req.Direction, req.Home.Address, req.Home.Postcode, req.Home.City,
		req.Home.Location.Lon, req.Home.Location.Lat, req.DepartureAt, req.SeatsTotal, req.LuggageTotal,
		req.PricePerSeat, req.Comment).Scan(&r.ID, &r.DriverID, &r.AirportID, &r.Direction, &r.DepartureAt,
		&r.SeatsTotal, &r.SeatsLeft, &r.LuggageTotal, &r.LuggageLeft, &r.PricePerSeat, &r.Status, &r.Comment,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("create ride failed", err)
	}
	r.Home = req.Home
	r.Route = req.Route
	return &r, nil
}

// GetRide loads a single ride by id.
func (e *Engine) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	var r models.Ride
	err := e.db.QueryRow(ctx, `
		SELECT id, driver_id, airport_id, direction, home_address, home_postcode, home_city,
		       home_location_lon, home_location_lat, departure_at, seats_total, seats_left,
		       luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
		FROM rides WHERE id = $1
	`, rideID).Scan(&r.ID, &r.DriverID, &r.AirportID, &r.Direction, &r.Home.Address, &r.Home.Postcode,
		&r.Home.City, &r.Home.Location.Lon, &r.Home.Location.Lat, &r.DepartureAt, &r.SeatsTotal, &r.SeatsLeft,
		&r.LuggageTotal, &r.LuggageLeft, &r.PricePerSeat, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("ride not found")
		}
		return nil, apperr.ValidationWrap("load ride failed", err)
	}
	return &r, nil
}

// ListMyRides lists rides published by driverID, most recent departure
// first.
func (e *Engine) ListMyRides(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id, driver_id, airport_id, direction, home_address, home_postcode, home_city,
		       home_location_lon, home_location_lat, departure_at, seats_total, seats_left,
		       luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
		FROM rides WHERE driver_id = $1
		ORDER BY departure_at DESC
	`, driverID)
	if err != nil {
		return nil, apperr.ValidationWrap("list my rides failed", err)
	}
	defer rows.Close()

	var out []models.Ride
	for rows.Next() {
		var r models.Ride
		if err := rows.Scan(&r.ID, &r.DriverID, &r.AirportID, &r.Direction, &r.Home.Address, &r.Home.Postcode,
			&r.Home.City, &r.Home.Location.Lon, &r.Home.Location.Lat, &r.DepartureAt, &r.SeatsTotal, &r.SeatsLeft,
			&r.LuggageTotal, &r.LuggageLeft, &r.PricePerSeat, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, apperr.ValidationWrap("scan ride failed", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// UpdateRide patches mutable ride fields (comment, pricePerSeat, departureAt)
// of an active ride; driver-only. The departure time is not checked.
func (e *Engine) UpdateRide(ctx context.Context, rideID, driverID uuid.UUID, req models.UpdateRideRequest) (*models.Ride, error) {
	ride, err := e.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, apperr.Permission("only the driver may edit this ride")
	}
	if ride.Status != models.RideActive {
		return nil, apperr.State("only active rides may be edited")
	}

	set := "updated_at = now()"
	args := []any{}
	argN := 1
	if req.PricePerSeat != nil {
		set += fmt.Sprintf(", price_per_seat = $%d", argN)
		args = append(args, *req.PricePerSeat)
		argN++
	}
	if req.Comment != nil {
		set += fmt.Sprintf(", comment = $%d", argN)
		args = append(args, *req.Comment)
		argN++
	}
	if req.DepartureAt != nil {
		if !req.DepartureAt.After(e.clock.Now()) {
			return nil, apperr.Validation("departure must be in the future")
		}
		set += fmt.Sprintf(", departure_at = $%d", argN)
		args = append(args, *req.DepartureAt)
		argN++
	}

	args = append(args, rideID)
	var r models.Ride
	err = e.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE rides SET %s WHERE id = $%d
		RETURNING id, driver_id, airport_id, direction, departure_at, seats_total, seats_left,
		          luggage_total, luggage_left, price_per_seat, status, comment, created_at, updated_at
	`, set, argN), args...).Scan(&r.ID, &r.DriverID, &r.AirportID, &r.Direction, &r.DepartureAt,
		&r.SeatsTotal, &r.SeatsLeft, &r.LuggageTotal, &r.LuggageLeft, &r.PricePerSeat, &r.Status, &r.Comment,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("update ride failed", err)
	}
	return &r, nil
}

// DeleteRide is an alias for the driver-initiated cancellation path,
// matching the HTTP surface's DELETE /rides/:id while reusing CancelRide's
// refund cascade.
func (e *Engine) DeleteRide(ctx context.Context, rideID, driverID uuid.UUID) error {
	return e.CancelRide(ctx, rideID, driverID)
}

// ListBookingsForRide lists bookings attached to a ride, driver-only.
func (e *Engine) ListBookingsForRide(ctx context.Context, rideID, driverID uuid.UUID) ([]models.Booking, error) {
	ride, err := e.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, apperr.Permission("only the driver may view this ride's bookings")
	}

	rows, err := e.db.Query(ctx, `
		SELECT id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method,
		       psp_intent_id, refund_id, refunded_at, refund_reason, created_at, updated_at
		FROM bookings WHERE ride_id = $1
		ORDER BY created_at ASC
	`, rideID)
	if err != nil {
		return nil, apperr.ValidationWrap("list bookings for ride failed", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage, &b.Status, &b.PaymentStatus,
			&b.PaymentMethod, &b.PSPIntentID, &b.RefundID, &b.RefundedAt, &b.RefundReason, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, apperr.ValidationWrap("scan booking for ride failed", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// ListMyBookings lists bookings made by passengerID across all rides.
func (e *Engine) ListMyBookings(ctx context.Context, passengerID uuid.UUID) ([]models.Booking, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method,
		       psp_intent_id, refund_id, refunded_at, refund_reason, created_at, updated_at
		FROM bookings WHERE passenger_id = $1
		ORDER BY created_at DESC
	`, passengerID)
	if err != nil {
		return nil, apperr.ValidationWrap("list my bookings failed", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage, &b.Status, &b.PaymentStatus,
			&b.PaymentMethod, &b.PSPIntentID, &b.RefundID, &b.RefundedAt, &b.RefundReason, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, apperr.ValidationWrap("scan my booking failed", err)
		}
		out = append(out, b)
	}
	return out, nil
}
