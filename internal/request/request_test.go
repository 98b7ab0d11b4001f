package request

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

func setupRequestEngine(t *testing.T, now time.Time) (*Engine, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	engine := New(mock, capacity.New(mock), ledger.New(mock), &payments.Mock{}, notification.New(mock, cache.New(nil)), clock.NewFixed(now), 10)
	return engine, mock
}

func TestCreateRequestRejectsPastPreferredAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupRequestEngine(t, now)
	defer mock.Close()

	_, err := engine.CreateRequest(context.Background(), uuid.New(), models.CreateRequestRequest{
		PreferredAt: now.Add(-time.Hour),
		SeatsNeeded: 1,
	})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestMakeOfferRejectsWhenRequestNotPending(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupRequestEngine(t, now)
	defer mock.Close()

	requestID := uuid.New()
	passengerID := uuid.New()
	driverID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		       seats_needed, luggage, max_price_per_seat, notes, status, matched_driver_id,
		       matched_ride_id, payment_status, expires_at, created_at, updated_at
		FROM ride_requests WHERE id = $1
	`)).WithArgs(requestID).WillReturnRows(pgxmock.NewRows(
		[]string{"id", "passenger_id", "airport_id", "direction", "preferred_at", "flexibility_minutes",
			"seats_needed", "luggage", "max_price_per_seat", "notes", "status", "matched_driver_id",
			"matched_ride_id", "payment_status", "expires_at", "created_at", "updated_at"},
	).AddRow(requestID, passengerID, "LHR", models.RequestToAirport, now.Add(2*time.Hour), 0,
		1, 0, nil, nil, models.RequestAccepted, nil, nil, models.PaymentPaid, now.Add(3*time.Hour), now, now))

	_, err := engine.MakeOffer(context.Background(), requestID, driverID, models.MakeOfferRequest{PricePerSeat: 1000})
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindState, appErr.Kind)
}

func TestSweepExpiredReportsCount(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupRequestEngine(t, now)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE ride_requests SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at < $1
	`)).WithArgs(now).WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := engine.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListMyRequestsOrdersMostRecentFirst(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupRequestEngine(t, now)
	defer mock.Close()

	passengerID := uuid.New()
	requestID := uuid.New()
	airportID := "LHR"

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		       seats_needed, luggage, max_price_per_seat, notes, status, matched_driver_id,
		       matched_ride_id, payment_status, expires_at, created_at, updated_at
		FROM ride_requests WHERE passenger_id = $1
		ORDER BY created_at DESC
	`)).WithArgs(passengerID).WillReturnRows(pgxmock.NewRows([]string{
		"id", "passenger_id", "airport_id", "direction", "preferred_at", "flexibility_minutes",
		"seats_needed", "luggage", "max_price_per_seat", "notes", "status", "matched_driver_id",
		"matched_ride_id", "payment_status", "expires_at", "created_at", "updated_at",
	}).AddRow(requestID, passengerID, airportID, models.RequestToAirport, now, 30,
		1, 1, nil, nil, models.RequestPending, nil,
		nil, models.PaymentUnpaid, now.Add(time.Hour), now, now))

	out, err := engine.ListMyRequests(context.Background(), passengerID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, requestID, out[0].ID)
}

func TestCreateOfferIntentRejectsNonOwningPassenger(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupRequestEngine(t, now)
	defer mock.Close()

	requestID := uuid.New()
	offerID := uuid.New()
	passengerID := uuid.New()
	stranger := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		       seats_needed, luggage, max_price_per_seat, notes, status, matched_driver_id,
		       matched_ride_id, payment_status, expires_at, created_at, updated_at
		FROM ride_requests WHERE id = $1
	`)).WithArgs(requestID).WillReturnRows(pgxmock.NewRows([]string{
		"id", "passenger_id", "airport_id", "direction", "preferred_at", "flexibility_minutes",
		"seats_needed", "luggage", "max_price_per_seat", "notes", "status", "matched_driver_id",
		"matched_ride_id", "payment_status", "expires_at", "created_at", "updated_at",
	}).AddRow(requestID, passengerID, "LHR", models.RequestToAirport, now, 30,
		1, 1, nil, nil, models.RequestPending, nil,
		nil, models.PaymentUnpaid, now.Add(time.Hour), now, now))

	_, err := engine.CreateOfferIntent(context.Background(), requestID, offerID, stranger)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPermission, appErr.Kind)
}

func TestCreateOfferIntentRejectsNonPendingOffer(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	engine, mock := setupRequestEngine(t, now)
	defer mock.Close()

	requestID := uuid.New()
	offerID := uuid.New()
	passengerID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		       seats_needed, luggage, max_price_per_seat, notes, status, matched_driver_id,
		       matched_ride_id, payment_status, expires_at, created_at, updated_at
		FROM ride_requests WHERE id = $1
	`)).WithArgs(requestID).WillReturnRows(pgxmock.NewRows([]string{
		"id", "passenger_id", "airport_id", "direction", "preferred_at", "flexibility_minutes",
		"seats_needed", "luggage", "max_price_per_seat", "notes", "status", "matched_driver_id",
		"matched_ride_id", "payment_status", "expires_at", "created_at", "updated_at",
	}).AddRow(requestID, passengerID, "LHR", models.RequestToAirport, now, 30,
		1, 1, nil, nil, models.RequestPending, nil,
		nil, models.PaymentUnpaid, now.Add(time.Hour), now, now))

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT price_per_seat, status FROM offers WHERE id = $1 AND request_id = $2
	`)).WithArgs(offerID, requestID).WillReturnRows(pgxmock.NewRows([]string{"price_per_seat", "status"}).
		AddRow(int64(2000), models.OfferRejected))

	_, err := engine.CreateOfferIntent(context.Background(), requestID, offerID, passengerID)
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindState, appErr.Kind)
}
