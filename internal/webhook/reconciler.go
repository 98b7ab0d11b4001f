// Package webhook reconciles signed PSP events into the ledger and booking
// state, idempotently on event id (spec section 4.4). Grounded on the
// teacher's HandleStripeWebhook: raw-body signature verification before any
// JSON parsing, then a type switch dispatching to per-event handlers.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v72"

	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/payments"
)

// Reconciler consumes raw webhook deliveries and applies their effects.
type Reconciler struct {
	db         database.DBPool
	gateway    payments.Gateway
	ledger     ledger.Store
	secret     string
	feePercent float64
}

// New builds a Reconciler.
func New(db database.DBPool, gateway payments.Gateway, ledgerStore ledger.Store, webhookSecret string, feePercent float64) *Reconciler {
	return &Reconciler{db: db, gateway: gateway, ledger: ledgerStore, secret: webhookSecret, feePercent: feePercent}
}

// Handle verifies the signature on the raw payload — this MUST run before
// any JSON-parsing middleware mutates the body — then dispatches by event
// type. Reprocessing the same event id is a no-op by construction: before
// dispatching, Handle records the event id with an insert that does nothing
// on conflict, and a zero rows-affected result short-circuits with no
// further effect.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := r.gateway.ConstructEvent(payload, signatureHeader, r.secret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	seen, err := r.recordEvent(ctx, event.ID, string(event.Type))
	if err != nil {
		return fmt.Errorf("webhook event dedup failed: %w", err)
	}
	if seen {
		log.Printf("webhook: event %s already processed, skipping", event.ID)
		return nil
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("unmarshal payment_intent.succeeded: %w", err)
		}
		return r.onPaymentIntentSucceeded(ctx, &pi)

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("unmarshal payment_intent.payment_failed: %w", err)
		}
		return r.onPaymentIntentFailed(ctx, &pi)

	case "transfer.created":
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			return fmt.Errorf("unmarshal transfer.created: %w", err)
		}
		return r.onTransferCreated(ctx, &tr)

	case "payout.paid":
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return fmt.Errorf("unmarshal payout.paid: %w", err)
		}
		return r.onPayoutPaid(ctx, &po)

	case "payout.failed":
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return fmt.Errorf("unmarshal payout.failed: %w", err)
		}
		return r.onPayoutFailed(ctx, &po)

	case "account.updated":
		var acc stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
			return fmt.Errorf("unmarshal account.updated: %w", err)
		}
		return r.onAccountUpdated(ctx, &acc)

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return fmt.Errorf("unmarshal charge.refunded: %w", err)
		}
		return r.onChargeRefunded(ctx, &ch)

	default:
		log.Printf("webhook: unhandled event type %s", event.Type)
		return nil
	}
}

// recordEvent inserts the event id under a unique index and reports whether
// it was already present (true => already processed).
func (r *Reconciler) recordEvent(ctx context.Context, eventID, eventType string) (alreadySeen bool, err error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

// onPaymentIntentSucceeded credits the driver's wallet with their net
// earnings unless funds were already routed by a Connect split, per the
// table in spec section 4.4.
func (r *Reconciler) onPaymentIntentSucceeded(ctx context.Context, pi *stripe.PaymentIntent) error {
	var bookingID, rideID, passengerID, driverID string
	var seats int
	hasTransferData := pi.TransferData != nil && pi.TransferData.Destination != nil

	err := r.db.QueryRow(ctx, `
		SELECT b.id, r.id, b.passenger_id, r.driver_id, b.seats
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.psp_intent_id = $1
	`, pi.ID).Scan(&bookingID, &rideID, &passengerID, &driverID, &seats)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Printf("webhook: payment_intent.succeeded for unknown intent %s", pi.ID)
			return nil
		}
		return err
	}

	if _, err := r.db.Exec(ctx, `
		UPDATE bookings SET payment_status = 'paid', updated_at = now()
		WHERE id = $1
	`, bookingID); err != nil {
		return err
	}

	if hasTransferData {
		return nil
	}

	driverUUID, err := parseUUID(driverID)
	if err != nil {
		return err
	}
	bookingUUID, err := parseUUID(bookingID)
	if err != nil {
		return err
	}

	_, err = r.ledger.Append(ctx, ledger.Entry{
		UserID:        driverUUID,
		Kind:          models.TxRideEarning,
		Status:        models.TxCompleted,
		GrossAmount:   pi.Amount,
		FeePercentage: r.feePercent,
		ReferenceKind: models.RefBooking,
		ReferenceID:   &bookingUUID,
		PSPIntentID:   &pi.ID,
		Description:   "ride earning credited from card payment",
	})
	return err
}

func (r *Reconciler) onPaymentIntentFailed(ctx context.Context, pi *stripe.PaymentIntent) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bookings SET payment_status = 'failed', updated_at = now()
		WHERE psp_intent_id = $1
	`, pi.ID)
	return err
}

func (r *Reconciler) onTransferCreated(ctx context.Context, tr *stripe.Transfer) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payouts SET psp_transfer_id = $1, updated_at = now()
		WHERE psp_payout_id = $2 AND psp_transfer_id IS NULL
	`, tr.ID, tr.Metadata["payout_id"])
	return err
}

func (r *Reconciler) onPayoutPaid(ctx context.Context, po *stripe.Payout) error {
	var txnID string
	err := r.db.QueryRow(ctx, `
		UPDATE payouts SET status = 'completed', updated_at = now()
		WHERE psp_payout_id = $1
		RETURNING transaction_id
	`, po.ID).Scan(&txnID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}

	_, err = r.db.Exec(ctx, `
		UPDATE transactions SET status = 'completed', processed_at = now()
		WHERE id = $1
	`, txnID)
	return err
}

// onPayoutFailed refunds the wallet balance by the payout amount, since the
// withdrawal debit was applied optimistically when the payout was requested.
func (r *Reconciler) onPayoutFailed(ctx context.Context, po *stripe.Payout) error {
	var userID, txnID string
	err := r.db.QueryRow(ctx, `
		UPDATE payouts SET status = 'failed', updated_at = now()
		WHERE psp_payout_id = $1
		RETURNING user_id, transaction_id
	`, po.ID).Scan(&userID, &txnID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}

	if _, err := r.db.Exec(ctx, `
		UPDATE transactions SET status = 'failed' WHERE id = $1
	`, txnID); err != nil {
		return err
	}

	userUUID, err := parseUUID(userID)
	if err != nil {
		return err
	}

	_, err = r.ledger.Append(ctx, ledger.Entry{
		UserID:        userUUID,
		Kind:          models.TxWithdrawalFailed,
		Status:        models.TxCompleted,
		GrossAmount:   po.Amount,
		ReferenceKind: models.RefPayout,
		Description:   "payout failed, balance restored",
	})
	return err
}

func (r *Reconciler) onAccountUpdated(ctx context.Context, acc *stripe.Account) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET
			connect_charges_enabled = $1,
			connect_payouts_enabled = $2,
			updated_at = now()
		WHERE connected_payout_account_id = $3
	`, acc.ChargesEnabled, acc.PayoutsEnabled, acc.ID)
	return err
}

// onChargeRefunded debits the driver's wallet by their share of a refunded
// charge and appends a matching refund Transaction, per spec section 4.4.
func (r *Reconciler) onChargeRefunded(ctx context.Context, ch *stripe.Charge) error {
	if ch.PaymentIntent == nil {
		return nil
	}

	var bookingID, driverID string
	var hasTransferData bool
	err := r.db.QueryRow(ctx, `
		SELECT b.id, r.driver_id, (b.psp_intent_id IS NOT NULL)
		FROM bookings b JOIN rides r ON r.id = b.ride_id
		WHERE b.psp_intent_id = $1
	`, ch.PaymentIntent.ID).Scan(&bookingID, &driverID, &hasTransferData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}

	driverUUID, err := parseUUID(driverID)
	if err != nil {
		return err
	}
	bookingUUID, err := parseUUID(bookingID)
	if err != nil {
		return err
	}

	driverShare := ch.AmountRefunded - int64((float64(ch.AmountRefunded)*r.feePercent+50)/100)

	_, err = r.ledger.Append(ctx, ledger.Entry{
		UserID:        driverUUID,
		Kind:          models.TxRefund,
		Status:        models.TxCompleted,
		GrossAmount:   -driverShare,
		ReferenceKind: models.RefBooking,
		ReferenceID:   &bookingUUID,
		Description:   "driver wallet debited for refunded charge",
	})
	return err
}
