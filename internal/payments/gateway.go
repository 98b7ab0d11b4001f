// Package payments wraps Stripe behind the PaymentGateway boundary the core
// domain engines depend on (spec section 4.3), generalizing the teacher's
// StripeService interface from a single fixed-amount join-fee into split
// payments, refunds, transfers, and connected-account onboarding.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/account"
	"github.com/stripe/stripe-go/v72/accountlink"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/refund"
	"github.com/stripe/stripe-go/v72/transfer"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/kayafamilly/carpool-core/internal/apperr"
)

// IntentStatus mirrors the PSP-agnostic states the core reasons about.
type IntentStatus string

const (
	IntentRequiresAction IntentStatus = "requires_action"
	IntentProcessing     IntentStatus = "processing"
	IntentSucceeded      IntentStatus = "succeeded"
	IntentFailed         IntentStatus = "failed"
)

// Intent is the gateway-agnostic view of a PaymentIntent.
type Intent struct {
	IntentID         string
	ClientSecret     string
	Status           IntentStatus
	Amount           int64
	HasTransferData  bool
	DestinationAccnt string
}

// RefundResult is the outcome of Refund.
type RefundResult struct {
	RefundID string
	Amount   int64
}

// TransferResult is the outcome of CreateTransfer.
type TransferResult struct {
	TransferID string
}

// ConnectedAccount is the outcome of CreateConnectedAccount / GetAccount.
type ConnectedAccount struct {
	AccountID           string
	OnboardingURL        string
	ExpiresAt            int64
	CapabilitiesEnabled  bool
	RequirementsDue      []string
}

// RefundOptions controls Refund's split-payment reversal behavior.
type RefundOptions struct {
	ReverseTransfer      bool
	RefundApplicationFee bool
}

// Gateway is the PaymentGateway boundary consumed by the core (spec 4.3).
// The core treats it as eventually consistent: a successful intent is only
// authoritative once confirmed by GetIntent or a signed webhook event.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string, splitDestination *string, applicationFee *int64) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, intentID string, opts RefundOptions) (*RefundResult, error)
	CreateTransfer(ctx context.Context, amount int64, destinationAccount string, metadata map[string]string) (*TransferResult, error)
	CreateConnectedAccount(ctx context.Context, userID, email string) (*ConnectedAccount, error)
	GetAccount(ctx context.Context, accountID string) (*ConnectedAccount, error)
	// ConstructEvent verifies the webhook signature on the raw payload,
	// which must happen before any JSON-parsing middleware touches it.
	ConstructEvent(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error)
}

type stripeGateway struct {
	client *client.API
}

// New builds a Gateway backed by the Stripe API, using apiKey for all calls.
func New(apiKey string) Gateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeGateway{client: sc}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string, splitDestination *string, applicationFee *int64) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if splitDestination != nil {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(*splitDestination),
		}
		if applicationFee != nil {
			params.ApplicationFeeAmount = stripe.Int64(*applicationFee)
		}
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, apperr.PaymentWrap("create payment intent failed", err)
	}
	return intentFromStripe(pi), nil
}

func (g *stripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, apperr.PaymentWrap("get payment intent failed", err)
	}
	return intentFromStripe(pi), nil
}

func (g *stripeGateway) Refund(ctx context.Context, intentID string, opts RefundOptions) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	if opts.ReverseTransfer {
		params.ReverseTransfer = stripe.Bool(true)
	}
	if opts.RefundApplicationFee {
		params.RefundApplicationFee = stripe.Bool(true)
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return nil, apperr.PaymentWrap("refund failed", err)
	}
	return &RefundResult{RefundID: r.ID, Amount: r.Amount}, nil
}

func (g *stripeGateway) CreateTransfer(ctx context.Context, amount int64, destinationAccount string, metadata map[string]string) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String("eur"),
		Destination: stripe.String(destinationAccount),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	tr, err := transfer.New(params)
	if err != nil {
		return nil, apperr.PaymentWrap("create transfer failed", err)
	}
	return &TransferResult{TransferID: tr.ID}, nil
}

func (g *stripeGateway) CreateConnectedAccount(ctx context.Context, userID, email string) (*ConnectedAccount, error) {
	accParams := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	}
	accParams.AddMetadata("app_user_id", userID)
	accParams.Context = ctx

	acc, err := account.New(accParams)
	if err != nil {
		return nil, apperr.PaymentWrap("create connected account failed", err)
	}

	linkParams := &stripe.AccountLinkParams{
		Account:    stripe.String(acc.ID),
		RefreshURL: stripe.String("https://carpool.invalid/onboarding/refresh"),
		ReturnURL:  stripe.String("https://carpool.invalid/onboarding/complete"),
		Type:       stripe.String("account_onboarding"),
	}
	linkParams.Context = ctx

	link, err := accountlink.New(linkParams)
	if err != nil {
		return nil, apperr.PaymentWrap("create account onboarding link failed", err)
	}

	return &ConnectedAccount{
		AccountID:    acc.ID,
		OnboardingURL: link.URL,
		ExpiresAt:     link.ExpiresAt,
	}, nil
}

func (g *stripeGateway) GetAccount(ctx context.Context, accountID string) (*ConnectedAccount, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acc, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, apperr.PaymentWrap("get connected account failed", err)
	}

	var due []string
	if acc.Requirements != nil {
		due = acc.Requirements.CurrentlyDue
	}

	return &ConnectedAccount{
		AccountID:           acc.ID,
		CapabilitiesEnabled: acc.ChargesEnabled && acc.PayoutsEnabled,
		RequirementsDue:     due,
	}, nil
}

func (g *stripeGateway) ConstructEvent(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	evt, err := webhook.ConstructEvent(payload, signatureHeader, webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return evt, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	status := IntentProcessing
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = IntentSucceeded
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		status = IntentRequiresAction
	case stripe.PaymentIntentStatusCanceled:
		status = IntentFailed
	}

	out := &Intent{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       status,
		Amount:       pi.Amount,
	}
	if pi.TransferData != nil && pi.TransferData.Destination != nil {
		out.HasTransferData = true
		out.DestinationAccnt = pi.TransferData.Destination.ID
	}
	return out
}
