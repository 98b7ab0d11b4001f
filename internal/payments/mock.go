package payments

import (
	"context"

	"github.com/stripe/stripe-go/v72"
)

// Mock is a scriptable Gateway double for engine/webhook tests, grounded on
// the generic mock-gateway shape seen across the example pack rather than
// any single teacher file, since the teacher tests against a live client
// interface instead.
type Mock struct {
	CreateIntentFn         func(ctx context.Context, amount int64, currency string, metadata map[string]string, splitDestination *string, applicationFee *int64) (*Intent, error)
	GetIntentFn            func(ctx context.Context, intentID string) (*Intent, error)
	RefundFn               func(ctx context.Context, intentID string, opts RefundOptions) (*RefundResult, error)
	CreateTransferFn       func(ctx context.Context, amount int64, destinationAccount string, metadata map[string]string) (*TransferResult, error)
	CreateConnectedAccountFn func(ctx context.Context, userID, email string) (*ConnectedAccount, error)
	GetAccountFn           func(ctx context.Context, accountID string) (*ConnectedAccount, error)
	ConstructEventFn       func(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error)
}

func (m *Mock) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string, splitDestination *string, applicationFee *int64) (*Intent, error) {
	return m.CreateIntentFn(ctx, amount, currency, metadata, splitDestination, applicationFee)
}

func (m *Mock) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	return m.GetIntentFn(ctx, intentID)
}

func (m *Mock) Refund(ctx context.Context, intentID string, opts RefundOptions) (*RefundResult, error) {
	return m.RefundFn(ctx, intentID, opts)
}

func (m *Mock) CreateTransfer(ctx context.Context, amount int64, destinationAccount string, metadata map[string]string) (*TransferResult, error) {
	return m.CreateTransferFn(ctx, amount, destinationAccount, metadata)
}

func (m *Mock) CreateConnectedAccount(ctx context.Context, userID, email string) (*ConnectedAccount, error) {
	return m.CreateConnectedAccountFn(ctx, userID, email)
}

func (m *Mock) GetAccount(ctx context.Context, accountID string) (*ConnectedAccount, error) {
	return m.GetAccountFn(ctx, accountID)
}

func (m *Mock) ConstructEvent(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	return m.ConstructEventFn(payload, signatureHeader, webhookSecret)
}
