// Package request implements passenger broadcasts, driver offers, and paid
// offer acceptance (spec section 4.6). Grounded on the greedy
// fetch/filter/score/select shape from the pack's matching service,
// simplified here since the passenger — not an automatic matcher — chooses
// which offer to accept.
package request

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"context"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/capacity"
	"github.com/kayafamilly/carpool-core/internal/clock"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/notification"
	"github.com/kayafamilly/carpool-core/internal/payments"
)

// requestExpiryWindow is how far past preferredAt a request stays open.
const requestExpiryWindow = time.Hour

// Engine is the RequestEngine (spec section 4.6).
type Engine struct {
	db         database.DBPool
	capacity   capacity.Store
	ledger     ledger.Store
	gateway    payments.Gateway
	notifier   notification.Bus
	clock      clock.Clock
	feePercent float64
}

// New builds a request Engine.
func New(db database.DBPool, capacityStore capacity.Store, ledgerStore ledger.Store, gateway payments.Gateway, notifier notification.Bus, clk clock.Clock, feePercent float64) *Engine {
	return &Engine{db: db, capacity: capacityStore, ledger: ledgerStore, gateway: gateway, notifier: notifier, clock: clk, feePercent: feePercent}
}

// CreateRequest validates location + preferred time and stores the
// broadcast with expiresAt = preferredAt + 1h.
func (e *Engine) CreateRequest(ctx context.Context, passengerID uuid.UUID, req models.CreateRequestRequest) (*models.RideRequest, error) {
	if !req.PreferredAt.After(e.clock.Now()) {
		return nil, apperr.Validation("preferredAt must be in the future")
	}

	id := uuid.New()
	expiresAt := req.PreferredAt.Add(requestExpiryWindow)

	var rr models.RideRequest
	err := e.db.QueryRow(ctx, `
		INSERT INTO ride_requests (
			id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
			seats_needed, luggage, max_price_per_seat, notes, status, payment_status,
			expires_at, created_at, updated_at,
			location_address, location_city, location_postcode, location_lon, location_lat
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', 'unpaid', $11, now(), now(),
			$12, $13, $14, $15, $16
		)
		RETURNING id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		          seats_needed, luggage, max_price_per_seat, notes, status, payment_status,
		          expires_at, created_at, updated_at
	`, id, passengerID, req.AirportID, req.Direction, req.PreferredAt, req.FlexibilityMins,
		req.SeatsNeeded, req.Luggage, req.MaxPricePerSeat, req.Notes, expiresAt,
		req.Location.Address, req.Location.City, req.Location.Postcode, req.Location.Location.Lon, req.Location.Location.Lat,
	).Scan(&rr.ID, &rr.PassengerID, &rr.AirportID, &rr.Direction, &rr.PreferredAt, &rr.FlexibilityMins,
		&rr.SeatsNeeded, &rr.Luggage, &rr.MaxPricePerSeat, &rr.Notes, &rr.Status, &rr.PaymentStatus,
		&rr.ExpiresAt, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("create request failed", err)
	}
	rr.Location = req.Location
	return &rr, nil
}

func (e *Engine) loadRequest(ctx context.Context, requestID uuid.UUID) (*models.RideRequest, error) {
	var rr models.RideRequest
	err := e.db.QueryRow(ctx, `
		SELECT id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		       seats_needed, luggage, max_price_per_seat, notes, status, matched_driver_id,
		       matched_ride_id, payment_status, expires_at, created_at, updated_at
		FROM ride_requests WHERE id = $1
	`, requestID).Scan(&rr.ID, &rr.PassengerID, &rr.AirportID, &rr.Direction, &rr.PreferredAt, &rr.FlexibilityMins,
		&rr.SeatsNeeded, &rr.Luggage, &rr.MaxPricePerSeat, &rr.Notes, &rr.Status, &rr.MatchedDriverID,
		&rr.MatchedRideID, &rr.PaymentStatus, &rr.ExpiresAt, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("request not found")
		}
		return nil, apperr.ValidationWrap("load request failed", err)
	}
	return &rr, nil
}

// MakeOffer enforces one pending offer per (request, driver), open while
// status=pending and before expiresAt.
func (e *Engine) MakeOffer(ctx context.Context, requestID, driverID uuid.UUID, req models.MakeOfferRequest) (*models.Offer, error) {
	rr, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rr.Status != models.RequestPending {
		return nil, apperr.State("request is not open for offers")
	}
	if !rr.ExpiresAt.After(e.clock.Now()) {
		return nil, apperr.State("request has expired")
	}

	var existing int
	if err := e.db.QueryRow(ctx, `
		SELECT count(*) FROM offers WHERE request_id = $1 AND driver_id = $2 AND status = 'pending'
	`, requestID, driverID).Scan(&existing); err != nil {
		return nil, apperr.ValidationWrap("check existing offer failed", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("a pending offer already exists for this driver")
	}

	var offer models.Offer
	err = e.db.QueryRow(ctx, `
		INSERT INTO offers (id, request_id, driver_id, ride_id, price_per_seat, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', now())
		RETURNING id, request_id, driver_id, ride_id, price_per_seat, message, status, created_at
	`, uuid.New(), requestID, driverID, req.RideID, req.PricePerSeat, req.Message).Scan(
		&offer.ID, &offer.RequestID, &offer.DriverID, &offer.RideID, &offer.PricePerSeat, &offer.Message, &offer.Status, &offer.CreatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("create offer failed", err)
	}

	_ = e.notifier.Notify(ctx, rr.PassengerID, models.NotifyOfferReceived, map[string]interface{}{
		"requestId": requestID, "offerId": offer.ID,
	}, nil)

	return &offer, nil
}

// CreateOfferIntent creates the card PaymentIntent for an offer's total
// (pricePerSeat * seatsNeeded) so the client can confirm it before calling
// AcceptOfferWithPayment, which only finalizes an already-succeeded intent.
func (e *Engine) CreateOfferIntent(ctx context.Context, requestID, offerID, passengerID uuid.UUID) (*payments.Intent, error) {
	rr, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rr.PassengerID != passengerID {
		return nil, apperr.Permission("only the requesting passenger may pay for this offer")
	}

	var pricePerSeat int64
	var status models.OfferStatus
	if err := e.db.QueryRow(ctx, `
		SELECT price_per_seat, status FROM offers WHERE id = $1 AND request_id = $2
	`, offerID, requestID).Scan(&pricePerSeat, &status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("offer not found")
		}
		return nil, apperr.ValidationWrap("load offer for intent failed", err)
	}
	if status != models.OfferPending {
		return nil, apperr.State("offer is no longer pending")
	}

	total := pricePerSeat * int64(rr.SeatsNeeded)
	return e.gateway.CreateIntent(ctx, total, "eur", map[string]string{
		"requestId": requestID.String(), "offerId": offerID.String(),
	}, nil, nil)
}

// AcceptOfferWithPayment executes the payment path before mutating any
// state, then atomically flips the chosen offer to accepted, rejects the
// rest, and marks the request matched (spec section 4.6).
func (e *Engine) AcceptOfferWithPayment(ctx context.Context, requestID, passengerID uuid.UUID, req models.AcceptOfferWithPaymentRequest) (*models.RideRequest, error) {
	rr, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if rr.PassengerID != passengerID {
		return nil, apperr.Permission("only the requesting passenger may accept an offer")
	}
	if rr.Status != models.RequestPending {
		return nil, apperr.State("request is not pending")
	}

	var offer models.Offer
	err = e.db.QueryRow(ctx, `
		SELECT id, request_id, driver_id, ride_id, price_per_seat, message, status, created_at
		FROM offers WHERE id = $1 AND request_id = $2
	`, req.OfferID, requestID).Scan(&offer.ID, &offer.RequestID, &offer.DriverID, &offer.RideID,
		&offer.PricePerSeat, &offer.Message, &offer.Status, &offer.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("offer not found")
		}
		return nil, apperr.ValidationWrap("load offer failed", err)
	}
	if offer.Status != models.OfferPending {
		return nil, apperr.State("offer is no longer pending")
	}

	total := offer.PricePerSeat * int64(rr.SeatsNeeded)

	switch req.Method {
	case models.PaymentMethodWallet:
		if _, err := e.ledger.Append(ctx, ledger.Entry{
			UserID: passengerID, Kind: models.TxRidePayment, Status: models.TxCompleted,
			GrossAmount: total, ReferenceKind: models.RefRide, ReferenceID: offer.RideID,
			Description: "wallet payment for accepted offer",
		}); err != nil {
			return nil, err
		}
		if _, err := e.ledger.Append(ctx, ledger.Entry{
			UserID: offer.DriverID, Kind: models.TxRideEarning, Status: models.TxCompleted,
			GrossAmount: total, FeePercentage: e.feePercent, ReferenceKind: models.RefRide, ReferenceID: offer.RideID,
			Description: "ride earning credited from accepted offer",
		}); err != nil {
			return nil, err
		}
	case models.PaymentMethodCard:
		intent, err := e.gateway.CreateIntent(ctx, total, "eur", map[string]string{
			"requestId": requestID.String(), "offerId": offer.ID.String(),
		}, nil, nil)
		if err != nil {
			return nil, err
		}
		got, err := e.gateway.GetIntent(ctx, intent.IntentID)
		if err != nil {
			return nil, err
		}
		if got.Status != payments.IntentSucceeded {
			return nil, apperr.Payment("card payment has not succeeded")
		}
	default:
		return nil, apperr.Validation("unsupported payment method")
	}

	if offer.RideID != nil {
		if err := e.capacity.TryReserve(ctx, *offer.RideID, rr.SeatsNeeded, rr.Luggage); err != nil {
			return nil, err
		}
	}

	var updated models.RideRequest
	err = database.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE offers SET status = 'accepted' WHERE id = $1`, offer.ID); err != nil {
			return apperr.ValidationWrap("accept offer failed", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE offers SET status = 'rejected' WHERE request_id = $1 AND id != $2 AND status = 'pending'`, requestID, offer.ID); err != nil {
			return apperr.ValidationWrap("reject other offers failed", err)
		}
		if err := tx.QueryRow(ctx, `
		UPDATE ride_requests
		SET status = 'accepted', matched_driver_id = $2, matched_ride_id = $3, payment_status = 'paid', updated_at = now()
		WHERE id = $1
		RETURNING id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		          seats_needed, luggage, status, matched_driver_id, matched_ride_id, payment_status,
		          expires_at, created_at, updated_at
	`, requestID, offer.DriverID, offer.RideID).Scan(&updated.ID, &updated.PassengerID, &updated.AirportID,
			&updated.Direction, &updated.PreferredAt, &updated.FlexibilityMins, &updated.SeatsNeeded, &updated.Luggage,
			&updated.Status, &updated.MatchedDriverID, &updated.MatchedRideID, &updated.PaymentStatus,
			&updated.ExpiresAt, &updated.CreatedAt, &updated.UpdatedAt); err != nil {
			return apperr.ValidationWrap("finalize accepted request failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = e.notifier.Notify(ctx, passengerID, models.NotifyRequestBooked, map[string]interface{}{"requestId": requestID}, nil)
	_ = e.notifier.Notify(ctx, offer.DriverID, models.NotifyOfferReceived, map[string]interface{}{"requestId": requestID, "offerId": offer.ID}, nil)

	rows, err := e.db.Query(ctx, `SELECT driver_id FROM offers WHERE request_id = $1 AND id != $2`, requestID, offer.ID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var driverID uuid.UUID
			if rows.Scan(&driverID) == nil {
				_ = e.notifier.Notify(ctx, driverID, models.NotifyOfferRejected, map[string]interface{}{"requestId": requestID}, nil)
			}
		}
	}

	return &updated, nil
}

// RejectOffer lets the passenger decline a single offer without accepting
// another.
func (e *Engine) RejectOffer(ctx context.Context, offerID, passengerID uuid.UUID) error {
	var requestID, driverID uuid.UUID
	err := e.db.QueryRow(ctx, `
		SELECT o.request_id, o.driver_id FROM offers o
		JOIN ride_requests r ON r.id = o.request_id
		WHERE o.id = $1 AND r.passenger_id = $2 AND o.status = 'pending'
	`, offerID, passengerID).Scan(&requestID, &driverID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperr.NotFound("pending offer not found")
		}
		return apperr.ValidationWrap("load offer for rejection failed", err)
	}

	if _, err := e.db.Exec(ctx, `UPDATE offers SET status = 'rejected' WHERE id = $1`, offerID); err != nil {
		return apperr.ValidationWrap("reject offer failed", err)
	}

	_ = e.notifier.Notify(ctx, driverID, models.NotifyOfferRejected, map[string]interface{}{"requestId": requestID}, nil)
	return nil
}

// WithdrawOffer lets a driver pull back their own pending offer.
func (e *Engine) WithdrawOffer(ctx context.Context, offerID, driverID uuid.UUID) error {
	tag, err := e.db.Exec(ctx, `
		UPDATE offers SET status = 'rejected' WHERE id = $1 AND driver_id = $2 AND status = 'pending'
	`, offerID, driverID)
	if err != nil {
		return apperr.ValidationWrap("withdraw offer failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("pending offer not found for this driver")
	}
	return nil
}

// CancelRequest lets the passenger cancel their own open request.
func (e *Engine) CancelRequest(ctx context.Context, requestID, passengerID uuid.UUID) error {
	tag, err := e.db.Exec(ctx, `
		UPDATE ride_requests SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND passenger_id = $2 AND status = 'pending'
	`, requestID, passengerID)
	if err != nil {
		return apperr.ValidationWrap("cancel request failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("pending request not found")
	}
	return nil
}

// ListMyRequests lists requests broadcast by passengerID, most recent first.
func (e *Engine) ListMyRequests(ctx context.Context, passengerID uuid.UUID) ([]models.RideRequest, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id, passenger_id, airport_id, direction, preferred_at, flexibility_minutes,
		       seats_needed, luggage, max_price_per_seat, notes, status, matched_driver_id,
		       matched_ride_id, payment_status, expires_at, created_at, updated_at
		FROM ride_requests WHERE passenger_id = $1
		ORDER BY created_at DESC
	`, passengerID)
	if err != nil {
		return nil, apperr.ValidationWrap("list my requests failed", err)
	}
	defer rows.Close()

	var out []models.RideRequest
	for rows.Next() {
		var rr models.RideRequest
		if err := rows.Scan(&rr.ID, &rr.PassengerID, &rr.AirportID, &rr.Direction, &rr.PreferredAt, &rr.FlexibilityMins,
			&rr.SeatsNeeded, &rr.Luggage, &rr.MaxPricePerSeat, &rr.Notes, &rr.Status, &rr.MatchedDriverID,
			&rr.MatchedRideID, &rr.PaymentStatus, &rr.ExpiresAt, &rr.CreatedAt, &rr.UpdatedAt); err != nil {
			return nil, apperr.ValidationWrap("scan my request failed", err)
		}
		out = append(out, rr)
	}
	return out, nil
}

// ListMyOffers lists offers driverID has made, most recent first.
func (e *Engine) ListMyOffers(ctx context.Context, driverID uuid.UUID) ([]models.Offer, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id, request_id, driver_id, ride_id, price_per_seat, message, status, created_at
		FROM offers WHERE driver_id = $1
		ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, apperr.ValidationWrap("list my offers failed", err)
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.RequestID, &o.DriverID, &o.RideID, &o.PricePerSeat, &o.Message, &o.Status, &o.CreatedAt); err != nil {
			return nil, apperr.ValidationWrap("scan my offer failed", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// SweepExpired marks every pending request whose expiresAt has passed as
// expired. Intended to run on a periodic ticker alongside the rating
// scheduler.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	tag, err := e.db.Exec(ctx, `
		UPDATE ride_requests SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at < $1
	`, e.clock.Now())
	if err != nil {
		return 0, apperr.ValidationWrap("sweep expired requests failed", err)
	}
	return int(tag.RowsAffected()), nil
}
