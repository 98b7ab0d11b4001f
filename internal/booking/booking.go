// Package booking implements the Ride/Booking state machine: creation,
// paid acceptance (card or wallet), transitions, cancellation with 100%
// refund fan-out, and ride cancellation cascade (spec section 4.5).
// Grounded on the teacher's JoinRideAutomatically transaction shape,
// generalized from a single fixed join-fee into priced, capacity-checked
// bookings with a full state matrix.
package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/capacity"
	"github.com/kayafamilly/carpool-core/internal/clock"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/notification"
	"github.com/kayafamilly/carpool-core/internal/payments"
)

// cancellationWindow is how long before departure a passenger may still
// cancel an accepted, paid booking (spec section 4.5 Transition matrix).
const cancellationWindow = 24 * time.Hour

// rideCancelWindow is how long before departure a driver may cancel the
// entire ride.
const rideCancelWindow = 12 * time.Hour

// Engine is the BookingEngine (spec section 4.5).
type Engine struct {
	db        database.DBPool
	capacity  capacity.Store
	ledger    ledger.Store
	gateway   payments.Gateway
	notifier  notification.Bus
	clock     clock.Clock
	feePercent float64
}

// New builds a booking Engine.
func New(db database.DBPool, capacityStore capacity.Store, ledgerStore ledger.Store, gateway payments.Gateway, notifier notification.Bus, clk clock.Clock, feePercent float64) *Engine {
	return &Engine{db: db, capacity: capacityStore, ledger: ledgerStore, gateway: gateway, notifier: notifier, clock: clk, feePercent: feePercent}
}

type rideRow struct {
	ID           uuid.UUID
	DriverID     uuid.UUID
	Status       models.RideStatus
	DepartureAt  time.Time
	SeatsLeft    int
	LuggageLeft  int
	PricePerSeat int64
}

func (e *Engine) loadRide(ctx context.Context, rideID uuid.UUID) (*rideRow, error) {
	var r rideRow
	err := e.db.QueryRow(ctx, `
		SELECT id, driver_id, status, departure_at, seats_left, luggage_left, price_per_seat
		FROM rides WHERE id = $1
	`, rideID).Scan(&r.ID, &r.DriverID, &r.Status, &r.DepartureAt, &r.SeatsLeft, &r.LuggageLeft, &r.PricePerSeat)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("ride not found")
		}
		return nil, apperr.ValidationWrap("load ride failed", err)
	}
	return &r, nil
}

func (e *Engine) loadBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := e.db.QueryRow(ctx, `
		SELECT id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method,
		       psp_intent_id, refund_id, refunded_at, refund_reason, created_at, updated_at
		FROM bookings WHERE id = $1
	`, bookingID).Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage, &b.Status, &b.PaymentStatus,
		&b.PaymentMethod, &b.PSPIntentID, &b.RefundID, &b.RefundedAt, &b.RefundReason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("booking not found")
		}
		return nil, apperr.ValidationWrap("load booking failed", err)
	}
	return &b, nil
}

// CreateBooking creates a pending, unpaid booking without reserving
// capacity — multiple passengers may request the last seats; the driver
// chooses on acceptance (spec section 4.5).
func (e *Engine) CreateBooking(ctx context.Context, rideID, passengerID uuid.UUID, req models.CreateBookingRequest) (*models.Booking, error) {
	ride, err := e.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideActive {
		return nil, apperr.State("ride is not active")
	}
	if !ride.DepartureAt.After(e.clock.Now()) {
		return nil, apperr.State("ride has already departed")
	}
	if ride.DriverID == passengerID {
		return nil, apperr.Validation("driver cannot book their own ride")
	}
	if req.Seats > ride.SeatsLeft {
		return nil, apperr.ErrInsufficientSeats
	}
	if req.Luggage > ride.LuggageLeft {
		return nil, apperr.ErrInsufficientLuggage
	}

	var existing int
	if err := e.db.QueryRow(ctx, `
		SELECT count(*) FROM bookings WHERE ride_id = $1 AND passenger_id = $2 AND status != 'cancelled'
	`, rideID, passengerID).Scan(&existing); err != nil {
		return nil, apperr.ValidationWrap("check existing booking failed", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("a booking already exists for this ride")
	}

	id := uuid.New()
	var b models.Booking
	err = e.db.QueryRow(ctx, `
		INSERT INTO bookings (id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', 'unpaid', 'none', now(), now())
		RETURNING id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, created_at, updated_at
	`, id, rideID, passengerID, req.Seats, req.Luggage).Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage,
		&b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("create booking failed", err)
	}

	_ = e.notifier.Notify(ctx, ride.DriverID, models.NotifyBookingRequest, map[string]interface{}{
		"bookingId": b.ID, "rideId": rideID, "passengerId": passengerID,
	}, &b.ID)

	return &b, nil
}

// PayAndBookWithCard creates a PSP intent sized pricePerSeat*seats, split to
// the driver's connected account with an application fee when present. The
// booking stays in an internal pre-accept staging row until CompletePayment
// reserves capacity.
func (e *Engine) PayAndBookWithCard(ctx context.Context, passengerID uuid.UUID, req models.PayWithCardRequest) (*payments.Intent, uuid.UUID, error) {
	ride, err := e.loadRide(ctx, req.RideID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if ride.Status != models.RideActive {
		return nil, uuid.Nil, apperr.State("ride is not active")
	}
	if req.Seats > ride.SeatsLeft {
		return nil, uuid.Nil, apperr.ErrInsufficientSeats
	}

	var destAccount *string
	var applicationFee *int64
	var connectedAccount *string
	if err := e.db.QueryRow(ctx, `SELECT connected_payout_account_id FROM users WHERE id = $1`, ride.DriverID).Scan(&connectedAccount); err == nil && connectedAccount != nil {
		destAccount = connectedAccount
		fee := int64(float64(ride.PricePerSeat*int64(req.Seats)) * e.feePercent / 100)
		applicationFee = &fee
	}

	amount := ride.PricePerSeat * int64(req.Seats)
	intent, err := e.gateway.CreateIntent(ctx, amount, "eur", map[string]string{
		"rideId":      req.RideID.String(),
		"passengerId": passengerID.String(),
		"seats":       fmt.Sprintf("%d", req.Seats),
		"luggage":     fmt.Sprintf("%d", req.Luggage),
	}, destAccount, applicationFee)
	if err != nil {
		return nil, uuid.Nil, err
	}

	id := uuid.New()
	_, err = e.db.Exec(ctx, `
		INSERT INTO bookings (id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, psp_intent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', 'unpaid', 'card', $6, now(), now())
	`, id, req.RideID, passengerID, req.Seats, req.Luggage, intent.IntentID)
	if err != nil {
		return nil, uuid.Nil, apperr.ValidationWrap("stage card booking failed", err)
	}

	return intent, id, nil
}

// CompletePayment re-validates seats, reserves capacity, and promotes the
// staged booking to accepted+paid. On reserve failure after a successful
// intent, it issues a refund and returns a user-visible error; the same
// applies if the booking row itself cannot be finalized.
func (e *Engine) CompletePayment(ctx context.Context, bookingID uuid.UUID, req models.CompletePaymentRequest) (*models.Booking, error) {
	intent, err := e.gateway.GetIntent(ctx, req.IntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != payments.IntentSucceeded {
		return nil, apperr.Payment("payment has not succeeded")
	}

	b, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending {
		return nil, apperr.State("booking is not pending")
	}

	if err := e.capacity.TryReserve(ctx, b.RideID, b.Seats, b.Luggage); err != nil {
		_, refundErr := e.gateway.Refund(ctx, req.IntentID, payments.RefundOptions{ReverseTransfer: true, RefundApplicationFee: true})
		if refundErr != nil {
			return nil, apperr.PaymentWrap("seats no longer available; refund also failed, needs manual reconciliation", refundErr)
		}
		return nil, apperr.Capacity("seats no longer available, payment refunded")
	}

	var updated models.Booking
	err = e.db.QueryRow(ctx, `
		UPDATE bookings SET status = 'accepted', payment_status = 'paid', updated_at = now()
		WHERE id = $1
		RETURNING id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, psp_intent_id, created_at, updated_at
	`, bookingID).Scan(&updated.ID, &updated.RideID, &updated.PassengerID, &updated.Seats, &updated.Luggage,
		&updated.Status, &updated.PaymentStatus, &updated.PaymentMethod, &updated.PSPIntentID, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		_ = e.capacity.Release(ctx, b.RideID, b.Seats, b.Luggage)
		_, refundErr := e.gateway.Refund(ctx, req.IntentID, payments.RefundOptions{ReverseTransfer: true, RefundApplicationFee: true})
		if refundErr != nil {
			return nil, apperr.PaymentWrap("booking finalize failed; refund also failed, needs manual reconciliation", refundErr)
		}
		return nil, apperr.ValidationWrap("booking finalize failed, payment refunded", err)
	}

	return &updated, nil
}

// PayAndBookWithWallet is authoritative with no PSP round-trip: it debits
// the passenger, reserves capacity, creates the booking, and credits the
// driver. The steps are separate writes, not one database transaction; if a
// step after the debit fails, the earlier steps are undone (capacity
// released, booking cancelled) and the debit is reversed with a
// compensating adjustment entry.
func (e *Engine) PayAndBookWithWallet(ctx context.Context, passengerID uuid.UUID, req models.PayWithWalletRequest) (*models.Booking, error) {
	ride, err := e.loadRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideActive {
		return nil, apperr.State("ride is not active")
	}

	amount := ride.PricePerSeat * int64(req.Seats)

	if _, err := e.ledger.Append(ctx, ledger.Entry{
		UserID:        passengerID,
		Kind:          models.TxRidePayment,
		Status:        models.TxCompleted,
		GrossAmount:   amount,
		ReferenceKind: models.RefRide,
		ReferenceID:   &req.RideID,
		Description:   "wallet payment for ride booking",
	}); err != nil {
		return nil, err
	}

	if err := e.capacity.TryReserve(ctx, req.RideID, req.Seats, req.Luggage); err != nil {
		_, _ = e.ledger.Append(ctx, ledger.Entry{
			UserID: passengerID, Kind: models.TxAdjustment, Status: models.TxCompleted,
			GrossAmount: amount, ReferenceKind: models.RefRide, ReferenceID: &req.RideID,
			Description: "refund: seats unavailable after wallet debit",
		})
		return nil, err
	}

	id := uuid.New()
	var b models.Booking
	err = e.db.QueryRow(ctx, `
		INSERT INTO bookings (id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'accepted', 'paid', 'wallet', now(), now())
		RETURNING id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, created_at, updated_at
	`, id, req.RideID, passengerID, req.Seats, req.Luggage).Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage,
		&b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		_ = e.capacity.Release(ctx, req.RideID, req.Seats, req.Luggage)
		_, _ = e.ledger.Append(ctx, ledger.Entry{
			UserID: passengerID, Kind: models.TxAdjustment, Status: models.TxCompleted,
			GrossAmount: amount, ReferenceKind: models.RefRide, ReferenceID: &req.RideID,
			Description: "refund: booking insert failed after wallet debit",
		})
		return nil, apperr.ValidationWrap("create wallet-paid booking failed", err)
	}

	if _, err := e.ledger.Append(ctx, ledger.Entry{
		UserID: ride.DriverID, Kind: models.TxRideEarning, Status: models.TxCompleted,
		GrossAmount: amount, FeePercentage: e.feePercent, ReferenceKind: models.RefBooking, ReferenceID: &b.ID,
		Description: "ride earning credited from wallet payment",
	}); err != nil {
		_ = e.capacity.Release(ctx, req.RideID, req.Seats, req.Luggage)
		_, _ = e.db.Exec(ctx, `UPDATE bookings SET status = 'cancelled', payment_status = 'refunded', updated_at = now() WHERE id = $1`, b.ID)
		_, _ = e.ledger.Append(ctx, ledger.Entry{
			UserID: passengerID, Kind: models.TxAdjustment, Status: models.TxCompleted,
			GrossAmount: amount, ReferenceKind: models.RefRide, ReferenceID: &req.RideID,
			Description: "refund: driver credit failed after wallet debit",
		})
		return nil, err
	}

	_ = e.notifier.Notify(ctx, ride.DriverID, models.NotifyBookingAccepted, map[string]interface{}{"bookingId": b.ID}, &b.ID)

	return &b, nil
}

func feeSplit(gross int64, feePercent float64) (fee, net int64) {
	scaled := float64(gross) * feePercent
	fee = int64((scaled + 50) / 100)
	if fee > gross {
		fee = gross
	}
	return fee, gross - fee
}

// Transition enforces the state matrix from spec section 4.5: pending ->
// accepted (driver, reserves capacity) / rejected (driver) / cancelled
// (passenger); accepted -> cancelled (passenger, >=24h before departure).
func (e *Engine) Transition(ctx context.Context, bookingID, actorID uuid.UUID, req models.TransitionBookingRequest) (*models.Booking, error) {
	b, err := e.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	ride, err := e.loadRide(ctx, b.RideID)
	if err != nil {
		return nil, err
	}

	switch {
	case b.Status == models.BookingPending && req.Status == models.BookingAccepted:
		if actorID != ride.DriverID {
			return nil, apperr.Permission("only the driver may accept a booking")
		}
		seats, luggage := b.Seats, b.Luggage
		if req.Seats != nil {
			seats = *req.Seats
		}
		if err := e.capacity.TryReserve(ctx, b.RideID, seats, luggage); err != nil {
			return nil, err
		}
		return e.setStatus(ctx, bookingID, models.BookingAccepted, seats)

	case b.Status == models.BookingPending && req.Status == models.BookingRejected:
		if actorID != ride.DriverID {
			return nil, apperr.Permission("only the driver may reject a booking")
		}
		updated, err := e.setStatus(ctx, bookingID, models.BookingRejected, b.Seats)
		if err == nil {
			_ = e.notifier.Notify(ctx, b.PassengerID, models.NotifyBookingRejected, map[string]interface{}{"bookingId": b.ID}, &b.ID)
		}
		return updated, err

	case b.Status == models.BookingPending && req.Status == models.BookingCancelled:
		if actorID != b.PassengerID {
			return nil, apperr.Permission("only the passenger may cancel a pending booking")
		}
		return e.setStatus(ctx, bookingID, models.BookingCancelled, b.Seats)

	case b.Status == models.BookingAccepted && req.Status == models.BookingCancelled:
		if actorID != b.PassengerID {
			return nil, apperr.Permission("only the passenger may cancel an accepted booking")
		}
		if ride.DepartureAt.Sub(e.clock.Now()) < cancellationWindow {
			return nil, apperr.State("cancellation window has passed")
		}
		return e.cancelWithRefund(ctx, b, ride, models.RefundPassengerCancelled)

	default:
		return nil, apperr.State(fmt.Sprintf("cannot transition booking from %s to %s", b.Status, req.Status))
	}
}

func (e *Engine) setStatus(ctx context.Context, bookingID uuid.UUID, status models.BookingStatus, seats int) (*models.Booking, error) {
	var b models.Booking
	err := e.db.QueryRow(ctx, `
		UPDATE bookings SET status = $2, seats = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, created_at, updated_at
	`, bookingID, status, seats).Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage,
		&b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("update booking status failed", err)
	}
	return &b, nil
}

// cancelWithRefund implements CancelBooking's 100%-refund branching on
// paymentMethod (spec section 4.5). Refund errors never roll back the
// cancellation: capacity is released, the refund is attempted, and the
// booking is then marked cancelled whether or not the refund succeeded. On
// a refund failure the booking keeps its previous payment status with no
// refunded_at, and the cancelled booking is returned together with a
// PaymentError for manual reconciliation.
func (e *Engine) cancelWithRefund(ctx context.Context, b *models.Booking, ride *rideRow, reason models.RefundReason) (*models.Booking, error) {
	if err := e.capacity.Release(ctx, b.RideID, b.Seats, b.Luggage); err != nil {
		return nil, err
	}

	var refundID *string
	var refundErr error

	amount := ride.PricePerSeat * int64(b.Seats)

	switch b.PaymentMethod {
	case models.PaymentMethodCard:
		if b.PSPIntentID != nil {
			result, err := e.gateway.Refund(ctx, *b.PSPIntentID, payments.RefundOptions{ReverseTransfer: true, RefundApplicationFee: true})
			if err != nil {
				refundErr = err
			} else {
				refundID = &result.RefundID
				_, _ = e.ledger.Append(ctx, ledger.Entry{
					UserID: b.PassengerID, Kind: models.TxRefund, Status: models.TxCompleted,
					GrossAmount: amount, ReferenceKind: models.RefBooking, ReferenceID: &b.ID,
					PSPIntentID: b.PSPIntentID, Description: "refund credited to passenger wallet",
				})
			}
		}
	case models.PaymentMethodWallet:
		_, err := e.ledger.Append(ctx, ledger.Entry{
			UserID: b.PassengerID, Kind: models.TxRefund, Status: models.TxCompleted,
			GrossAmount: amount, ReferenceKind: models.RefBooking, ReferenceID: &b.ID,
			Description: "wallet refund credited",
		})
		if err != nil {
			refundErr = err
		}
	}

	if refundErr == nil {
		_, net := feeSplit(amount, e.feePercent)
		_, _ = e.ledger.Append(ctx, ledger.Entry{
			UserID: ride.DriverID, Kind: models.TxAdjustment, Status: models.TxCompleted,
			GrossAmount: -net, ReferenceKind: models.RefBooking, ReferenceID: &b.ID,
			Description: "driver wallet debited for cancelled booking refund",
		})
	}

	var updated models.Booking
	err := e.db.QueryRow(ctx, `
		UPDATE bookings SET status = 'cancelled',
		       payment_status = CASE WHEN $4 THEN 'refunded' ELSE payment_status END, refund_id = $2,
		       refund_reason = $3, refunded_at = CASE WHEN $4 THEN now() ELSE refunded_at END, updated_at = now()
		WHERE id = $1
		RETURNING id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, created_at, updated_at
	`, b.ID, refundID, reason, refundErr == nil).Scan(&updated.ID, &updated.RideID, &updated.PassengerID, &updated.Seats, &updated.Luggage,
		&updated.Status, &updated.PaymentStatus, &updated.PaymentMethod, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("finalize cancellation failed", err)
	}

	if refundErr != nil {
		return &updated, apperr.PaymentWrap("booking cancelled; refund failed and needs manual reconciliation", refundErr)
	}

	_ = e.notifier.Notify(ctx, ride.DriverID, models.NotifyBookingCancelled, map[string]interface{}{"bookingId": b.ID}, &b.ID)

	return &updated, nil
}

// CancelRide cancels the ride if departure is more than 12h away, cascading
// to every non-terminal booking with refunds and notifications.
func (e *Engine) CancelRide(ctx context.Context, rideID, driverID uuid.UUID) error {
	ride, err := e.loadRide(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID != driverID {
		return apperr.Permission("only the driver may cancel this ride")
	}
	if ride.DepartureAt.Sub(e.clock.Now()) <= rideCancelWindow {
		return apperr.State("ride cancellation window has passed")
	}

	rows, err := e.db.Query(ctx, `
		SELECT id, ride_id, passenger_id, seats, luggage, status, payment_status, payment_method, psp_intent_id, created_at, updated_at
		FROM bookings WHERE ride_id = $1 AND status IN ('pending', 'accepted')
	`, rideID)
	if err != nil {
		return apperr.ValidationWrap("load bookings for ride cancel failed", err)
	}
	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Luggage, &b.Status,
			&b.PaymentStatus, &b.PaymentMethod, &b.PSPIntentID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			rows.Close()
			return apperr.ValidationWrap("scan booking for ride cancel failed", err)
		}
		bookings = append(bookings, b)
	}
	rows.Close()

	if err := e.capacity.Freeze(ctx, rideID); err != nil {
		return err
	}
	if _, err := e.db.Exec(ctx, `UPDATE rides SET status = 'cancelled', updated_at = now() WHERE id = $1`, rideID); err != nil {
		return apperr.ValidationWrap("cancel ride failed", err)
	}

	for _, b := range bookings {
		if b.PaymentStatus == models.PaymentPaid {
			if _, err := e.cancelWithRefund(ctx, &b, ride, models.RefundRideCancelled); err != nil {
				log.Printf("booking: refund failed for cancelled booking %s: %v", b.ID, err)
			}
		} else {
			_, _ = e.setStatus(ctx, b.ID, models.BookingCancelled, b.Seats)
		}
		_ = e.notifier.Notify(ctx, b.PassengerID, models.NotifyRideCancelled, map[string]interface{}{"rideId": rideID}, &b.ID)
	}

	return nil
}

// CompleteRide is a manual/admin operation marking a departed ride
// completed; the spec leaves the active->completed trigger open, and this
// implementation resolves it as an explicit call rather than an automatic
// timer (see the design notes for why).
func (e *Engine) CompleteRide(ctx context.Context, rideID uuid.UUID) error {
	tag, err := e.db.Exec(ctx, `
		UPDATE rides SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, rideID)
	if err != nil {
		return apperr.ValidationWrap("complete ride failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.State("ride is not active")
	}
	return nil
}
