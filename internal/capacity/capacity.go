// Package capacity owns Ride seatsLeft/luggageLeft, reserved and released
// under conditional SQL updates so the last-seat race never double-books.
package capacity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/database"
)

// Store is the CapacityStore contract (spec section 4.1).
type Store interface {
	// TryReserve atomically decrements seatsLeft/luggageLeft for an active
	// ride, failing with apperr.Capacity if either would go negative or the
	// ride is not active. Safe under concurrent callers racing the last seat.
	TryReserve(ctx context.Context, rideID uuid.UUID, seats, luggage int) error

	// Release unconditionally increments seatsLeft/luggageLeft, clamped to
	// seatsTotal/luggageTotal so a double-release can never overshoot.
	Release(ctx context.Context, rideID uuid.UUID, seats, luggage int) error

	// Freeze marks the ride cancelled so no further reservation succeeds.
	Freeze(ctx context.Context, rideID uuid.UUID) error
}

type store struct {
	db database.DBPool
}

// New builds a Store backed by Postgres.
func New(db database.DBPool) Store {
	return &store{db: db}
}

// TryReserve implements the conditional-update contract from spec section
// 4.1: `WHERE seatsLeft >= seats AND luggageLeft >= luggage AND status = 'active'`.
// A zero rows-affected result means the condition failed — either the ride
// is not active, or capacity was already claimed by a concurrent caller —
// and is reported as apperr.Capacity rather than a generic not-found, since
// callers need to distinguish "full" from "doesn't exist".
func (s *store) TryReserve(ctx context.Context, rideID uuid.UUID, seats, luggage int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET seats_left = seats_left - $2,
		    luggage_left = luggage_left - $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		  AND seats_left >= $2
		  AND luggage_left >= $3
	`, rideID, seats, luggage)
	if err != nil {
		return apperr.ValidationWrap("reserve capacity failed", err)
	}
	if tag.RowsAffected() == 0 {
		if _, activeErr := s.rideIsActive(ctx, rideID); errors.Is(activeErr, pgx.ErrNoRows) {
			return apperr.NotFound("ride not found")
		}
		return apperr.Capacity("insufficient seats or luggage capacity")
	}
	return nil
}

func (s *store) rideIsActive(ctx context.Context, rideID uuid.UUID) (bool, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM rides WHERE id = $1`, rideID).Scan(&status)
	if err != nil {
		return false, err
	}
	return status == "active", nil
}

// Release is unconditional but clamps to seatsTotal/luggageTotal, a
// bug-safety backstop against a double-release overshooting capacity.
func (s *store) Release(ctx context.Context, rideID uuid.UUID, seats, luggage int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rides
		SET seats_left = LEAST(seats_total, seats_left + $2),
		    luggage_left = LEAST(luggage_total, luggage_left + $3),
		    updated_at = now()
		WHERE id = $1
	`, rideID, seats, luggage)
	if err != nil {
		return apperr.ValidationWrap("release capacity failed", err)
	}
	return nil
}

// Freeze sets status=cancelled so TryReserve's WHERE clause can never match
// this ride again.
func (s *store) Freeze(ctx context.Context, rideID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rides SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, rideID)
	if err != nil {
		return apperr.ValidationWrap("freeze ride failed", err)
	}
	return nil
}
