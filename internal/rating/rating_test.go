package rating

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/cache"
	"github.com/kayafamilly/carpool-core/internal/clock"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/notification"
)

func setupStore(t *testing.T, now time.Time) (*Store, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	notifier := notification.New(mock, cache.New(nil))
	return New(mock, clock.NewFixed(now), notifier), mock
}

func TestSubmitRejectsBeforeEligibilityWindowOpens(t *testing.T) {
	departureAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := departureAt.Add(10 * time.Minute) // only 10 min past departure, window needs 30
	store, mock := setupStore(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT b.ride_id, r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"ride_id", "driver_id", "passenger_id", "departure_at", "status"},
	).AddRow(rideID, driverID, passengerID, departureAt, models.BookingAccepted))

	_, err := store.Submit(context.Background(), passengerID, models.SubmitRatingRequest{BookingID: bookingID, Stars: 5})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindState, appErr.Kind)
}

func TestSubmitRejectsNonParticipant(t *testing.T) {
	departureAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := departureAt.Add(45 * time.Minute)
	store, mock := setupStore(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()
	stranger := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT b.ride_id, r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"ride_id", "driver_id", "passenger_id", "departure_at", "status"},
	).AddRow(rideID, driverID, passengerID, departureAt, models.BookingAccepted))

	_, err := store.Submit(context.Background(), stranger, models.SubmitRatingRequest{BookingID: bookingID, Stars: 5})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPermission, appErr.Kind)
}

func TestSubmitRejectsDuplicateRatingFromSameUser(t *testing.T) {
	departureAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := departureAt.Add(45 * time.Minute)
	store, mock := setupStore(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	rideID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT b.ride_id, r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"ride_id", "driver_id", "passenger_id", "departure_at", "status"},
	).AddRow(rideID, driverID, passengerID, departureAt, models.BookingAccepted))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT count(*) FROM ratings WHERE booking_id = $1 AND from_user_id = $2
	`)).WithArgs(bookingID, passengerID).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	_, err := store.Submit(context.Background(), passengerID, models.SubmitRatingRequest{BookingID: bookingID, Stars: 5})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
}

func TestSweepNotifiesBothSidesWhenNeitherHasRated(t *testing.T) {
	now := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	store, mock := setupStore(t, now)
	defer mock.Close()

	rideID := uuid.New()
	driverID := uuid.New()
	bookingID := uuid.New()
	passengerID := uuid.New()

	windowStart := now.Add(-ratingEligibilityDelay - sweepWindow)
	windowEnd := now.Add(-ratingEligibilityDelay)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT r.id, r.driver_id, b.id, b.passenger_id
		FROM rides r
		JOIN bookings b ON b.ride_id = r.id AND b.status = 'accepted'
		WHERE r.status = 'active' AND r.departure_at BETWEEN $1 AND $2
	`)).WithArgs(windowStart, windowEnd).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "driver_id", "id", "passenger_id"},
	).AddRow(rideID, driverID, bookingID, passengerID))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM ratings WHERE booking_id = $1 AND type = 'passenger_to_driver')`)).
		WithArgs(bookingID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM ratings WHERE booking_id = $1 AND type = 'driver_to_passenger')`)).
		WithArgs(bookingID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND kind = $2 AND booking_id = $3
		)
	`)).WithArgs(passengerID, models.NotifyRateDriver, bookingID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO notifications (id, user_id, kind, payload, booking_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())
	`)).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND kind = $2 AND booking_id = $3
		)
	`)).WithArgs(driverID, models.NotifyRatePassenger, bookingID).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO notifications (id, user_id, kind, payload, booking_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())
	`)).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	scheduler := NewScheduler(mock, clock.NewFixed(now), notification.New(mock, cache.New(nil)))
	n, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCanRateReturnsFalseBeforeWindowOpens(t *testing.T) {
	departureAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := departureAt.Add(10 * time.Minute)
	store, mock := setupStore(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"driver_id", "passenger_id", "departure_at", "status"},
	).AddRow(driverID, passengerID, departureAt, models.BookingAccepted))

	canRate, err := store.CanRate(context.Background(), passengerID, bookingID)
	require.NoError(t, err)
	assert.False(t, canRate)
}

func TestCanRateReturnsTrueWhenEligible(t *testing.T) {
	departureAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := departureAt.Add(45 * time.Minute)
	store, mock := setupStore(t, now)
	defer mock.Close()

	bookingID := uuid.New()
	driverID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT r.driver_id, b.passenger_id, r.departure_at, b.status
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.id = $1
	`)).WithArgs(bookingID).WillReturnRows(pgxmock.NewRows(
		[]string{"driver_id", "passenger_id", "departure_at", "status"},
	).AddRow(driverID, passengerID, departureAt, models.BookingAccepted))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT count(*) FROM ratings WHERE booking_id = $1 AND from_user_id = $2
	`)).WithArgs(bookingID, passengerID).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	canRate, err := store.CanRate(context.Background(), passengerID, bookingID)
	require.NoError(t, err)
	assert.True(t, canRate)
}

func TestListPendingMarksDirectionPerCaller(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store, mock := setupStore(t, now)
	defer mock.Close()

	passengerID := uuid.New()
	bookingID := uuid.New()
	rideID := uuid.New()
	driverID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT b.id, r.id, r.driver_id, b.passenger_id
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE b.status = 'accepted'
		  AND (b.passenger_id = $1 OR r.driver_id = $1)
		  AND r.departure_at <= $2
		  AND NOT EXISTS (
		    SELECT 1 FROM ratings WHERE booking_id = b.id AND from_user_id = $1
		  )
	`)).WithArgs(passengerID, pgxmock.AnyArg()).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "id", "driver_id", "passenger_id"},
	).AddRow(bookingID, rideID, driverID, passengerID))

	pending, err := store.ListPending(context.Background(), passengerID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.RatingPassengerToDriver, pending[0].Type)
	assert.Equal(t, driverID, pending[0].ToUserID)
}

func TestStatsReturnsNotFoundForUnknownUser(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store, mock := setupStore(t, now)
	defer mock.Close()

	userID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT rating_mean, rating_count FROM users WHERE id = $1
	`)).WithArgs(userID).WillReturnError(pgx.ErrNoRows)

	_, err := store.Stats(context.Background(), userID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}
