package webhook

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v72"

	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/payments"
)

func TestHandleSkipsAlreadyProcessedEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	gw := &payments.Mock{
		ConstructEventFn: func(payload []byte, sig, secret string) (stripe.Event, error) {
			return stripe.Event{ID: "evt_1", Type: "payment_intent.payment_failed", Data: &stripe.EventData{Raw: payload}}, nil
		},
	}

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (event_id) DO NOTHING
	`)).WithArgs("evt_1", "payment_intent.payment_failed").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	r := New(mock, gw, ledger.New(mock), "whsec_test", 10)

	payload, _ := json.Marshal(stripe.PaymentIntent{ID: "pi_1"})
	err = r.Handle(context.Background(), payload, "sig")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleRejectsBadSignature(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	gw := &payments.Mock{
		ConstructEventFn: func(payload []byte, sig, secret string) (stripe.Event, error) {
			return stripe.Event{}, assert.AnError
		},
	}

	r := New(mock, gw, ledger.New(mock), "whsec_test", 10)
	err = r.Handle(context.Background(), []byte("{}"), "bad-sig")
	require.Error(t, err)
}

func TestHandlePaymentIntentFailedMarksBookingFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	gw := &payments.Mock{
		ConstructEventFn: func(payload []byte, sig, secret string) (stripe.Event, error) {
			return stripe.Event{ID: "evt_2", Type: "payment_intent.payment_failed", Data: &stripe.EventData{Raw: payload}}, nil
		},
	}

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (event_id) DO NOTHING
	`)).WithArgs("evt_2", "payment_intent.payment_failed").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE bookings SET payment_status = 'failed', updated_at = now()
		WHERE psp_intent_id = $1
	`)).WithArgs("pi_failed").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	r := New(mock, gw, ledger.New(mock), "whsec_test", 10)

	payload, _ := json.Marshal(stripe.PaymentIntent{ID: "pi_failed"})
	err = r.Handle(context.Background(), payload, "sig")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
