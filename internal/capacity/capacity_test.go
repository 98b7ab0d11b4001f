package capacity

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayafamilly/carpool-core/internal/apperr"
)

func setupCapacityTest(t *testing.T) (Store, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return New(mock), mock
}

func TestTryReserveSucceedsWhenCapacityAvailable(t *testing.T) {
	store, mock := setupCapacityTest(t)
	defer mock.Close()

	rideID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE rides
		SET seats_left = seats_left - $2,
		    luggage_left = luggage_left - $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		  AND seats_left >= $2
		  AND luggage_left >= $3
	`)).WithArgs(rideID, 2, 1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.TryReserve(context.Background(), rideID, 2, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestTryReserveFailsOnLastSeatRace simulates two concurrent reservations for
// the last seat: the conditional UPDATE affects zero rows for the loser, who
// must see apperr.Capacity rather than a silent success.
func TestTryReserveFailsOnLastSeatRace(t *testing.T) {
	store, mock := setupCapacityTest(t)
	defer mock.Close()

	rideID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE rides
		SET seats_left = seats_left - $2,
		    luggage_left = luggage_left - $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		  AND seats_left >= $2
		  AND luggage_left >= $3
	`)).WithArgs(rideID, 1, 0).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM rides WHERE id = $1`)).
		WithArgs(rideID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("active"))

	err := store.TryReserve(context.Background(), rideID, 1, 0)
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindCapacity, appErr.Kind)
}

func TestTryReserveReportsCapacityForInactiveRide(t *testing.T) {
	store, mock := setupCapacityTest(t)
	defer mock.Close()

	rideID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE rides
		SET seats_left = seats_left - $2,
		    luggage_left = luggage_left - $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		  AND seats_left >= $2
		  AND luggage_left >= $3
	`)).WithArgs(rideID, 1, 0).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM rides WHERE id = $1`)).
		WithArgs(rideID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("cancelled"))

	err := store.TryReserve(context.Background(), rideID, 1, 0)
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindCapacity, appErr.Kind)
}

func TestReleaseClampsToCapacityTotals(t *testing.T) {
	store, mock := setupCapacityTest(t)
	defer mock.Close()

	rideID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE rides
		SET seats_left = LEAST(seats_total, seats_left + $2),
		    luggage_left = LEAST(luggage_total, luggage_left + $3),
		    updated_at = now()
		WHERE id = $1
	`)).WithArgs(rideID, 2, 1).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.Release(context.Background(), rideID, 2, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreezeDisallowsFurtherReservations(t *testing.T) {
	store, mock := setupCapacityTest(t)
	defer mock.Close()

	rideID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE rides SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'active'
	`)).WithArgs(rideID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.Freeze(context.Background(), rideID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
