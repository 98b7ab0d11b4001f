package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/cache"
	"github.com/kayafamilly/carpool-core/internal/capacity"
	"github.com/kayafamilly/carpool-core/internal/clock"
	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/notification"
	"github.com/kayafamilly/carpool-core/internal/payments"
)

func setupEngine(t *testing.T, now time.Time) (*Engine, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	fixedClock := clock.NewFixed(now)
	engine := New(mock, capacity.New(mock), ledger.New(mock), &payments.Mock{}, notification.New(mock, cache.New(nil)), fixedClock, 10)
	return engine, mock
}

func TestCreateBookingRejectsDriverBookingOwnRide(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupEngine(t, now)
	defer mock.Close()

	rideID := uuid.New()
	driverID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, driver_id, status, departure_at, seats_left, luggage_left, price_per_seat
		FROM rides WHERE id = $1
	`)).WithArgs(rideID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "driver_id", "status", "departure_at", "seats_left", "luggage_left", "price_per_seat"},
	).AddRow(rideID, driverID, models.RideActive, now.Add(48*time.Hour), 3, 3, int64(1000)))

	_, err := engine.CreateBooking(context.Background(), rideID, driverID, models.CreateBookingRequest{Seats: 1})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestCreateBookingRejectsInsufficientSeats(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupEngine(t, now)
	defer mock.Close()

	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, driver_id, status, departure_at, seats_left, luggage_left, price_per_seat
		FROM rides WHERE id = $1
	`)).WithArgs(rideID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "driver_id", "status", "departure_at", "seats_left", "luggage_left", "price_per_seat"},
	).AddRow(rideID, driverID, models.RideActive, now.Add(48*time.Hour), 1, 3, int64(1000)))

	_, err := engine.CreateBooking(context.Background(), rideID, passengerID, models.CreateBookingRequest{Seats: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientSeats)
}

func TestTransitionAcceptRequiresDriverActor(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupEngine(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()
	otherPassenger := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method,
		       psp_intent_id, refund_id, refunded_at, refund_reason, created_at, updated_at
		FROM bookings WHERE id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "ride_id", "passenger_id", "seats", "luggage", "status", "payment_status",
			"payment_method", "psp_intent_id", "refund_id", "refunded_at", "refund_reason", "created_at", "updated_at"},
	).AddRow(bookingID, rideID, passengerID, 1, 0, models.BookingPending, models.PaymentUnpaid,
		models.PaymentMethodNone, nil, nil, nil, nil, now, now))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, driver_id, status, departure_at, seats_left, luggage_left, price_per_seat
		FROM rides WHERE id = $1
	`)).WithArgs(rideID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "driver_id", "status", "departure_at", "seats_left", "luggage_left", "price_per_seat"},
	).AddRow(rideID, driverID, models.RideActive, now.Add(48*time.Hour), 3, 3, int64(1000)))

	_, err := engine.Transition(context.Background(), bookingID, otherPassenger, models.TransitionBookingRequest{Status: models.BookingAccepted})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPermission, appErr.Kind)
}

func TestTransitionCancelAcceptedRejectsInsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupEngine(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method,
		       psp_intent_id, refund_id, refunded_at, refund_reason, created_at, updated_at
		FROM bookings WHERE id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "ride_id", "passenger_id", "seats", "luggage", "status", "payment_status",
			"payment_method", "psp_intent_id", "refund_id", "refunded_at", "refund_reason", "created_at", "updated_at"},
	).AddRow(bookingID, rideID, passengerID, 1, 0, models.BookingAccepted, models.PaymentPaid,
		models.PaymentMethodWallet, nil, nil, nil, nil, now, now))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, driver_id, status, departure_at, seats_left, luggage_left, price_per_seat
		FROM rides WHERE id = $1
	`)).WithArgs(rideID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "driver_id", "status", "departure_at", "seats_left", "luggage_left", "price_per_seat"},
	).AddRow(rideID, driverID, models.RideActive, now.Add(2*time.Hour), 3, 3, int64(1000)))

	_, err := engine.Transition(context.Background(), bookingID, passengerID, models.TransitionBookingRequest{Status: models.BookingCancelled})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindState, appErr.Kind)
}

func TestFeeSplitGrossEqualsFeePlusNet(t *testing.T) {
	fee, net := feeSplit(1000, 10)
	assert.Equal(t, int64(1000), fee+net)
}
