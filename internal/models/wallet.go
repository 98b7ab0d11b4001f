package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger entry (spec section 3).
type TransactionKind string

const (
	TxRideEarning      TransactionKind = "ride_earning"
	TxRidePayment      TransactionKind = "ride_payment"
	TxPlatformFee      TransactionKind = "platform_fee"
	TxWithdrawal       TransactionKind = "withdrawal"
	TxWithdrawalFailed TransactionKind = "withdrawal_failed"
	TxRefund           TransactionKind = "refund"
	TxBonus            TransactionKind = "bonus"
	TxAdjustment       TransactionKind = "adjustment"
)

// TransactionStatus is the ledger entry's settlement status.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// ReferenceKind identifies what a Transaction refers back to.
type ReferenceKind string

const (
	RefBooking ReferenceKind = "booking"
	RefRide    ReferenceKind = "ride"
	RefPayout  ReferenceKind = "payout"
	RefRefund  ReferenceKind = "refund"
	RefManual  ReferenceKind = "manual"
)

// affectsBalance reports whether a transaction kind mutates wallet.balance
// once completed (spec section 4.2 Append contract).
func (k TransactionKind) affectsBalance() bool {
	switch k {
	case TxPlatformFee:
		return false
	default:
		return true
	}
}

// AffectsBalance exposes affectsBalance to other packages.
func (k TransactionKind) AffectsBalance() bool { return k.affectsBalance() }

// Wallet is a user's internal balance (spec section 3).
type Wallet struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"userId" db:"user_id"`
	Balance        int64     `json:"balance" db:"balance"`
	PendingBalance int64     `json:"pendingBalance" db:"pending_balance"`
	TotalEarned    int64     `json:"totalEarned" db:"total_earned"`
	TotalWithdrawn int64     `json:"totalWithdrawn" db:"total_withdrawn"`
	Currency       string    `json:"currency" db:"currency"`
	IsActive       bool      `json:"isActive" db:"is_active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	WalletID        uuid.UUID         `json:"walletId" db:"wallet_id"`
	UserID          uuid.UUID         `json:"userId" db:"user_id"`
	Kind            TransactionKind   `json:"kind" db:"kind"`
	Amount          int64             `json:"amount" db:"amount"` // signed minor units
	GrossAmount     int64             `json:"grossAmount" db:"gross_amount"`
	FeeAmount       int64             `json:"feeAmount" db:"fee_amount"`
	FeePercentage   float64           `json:"feePercentage" db:"fee_percentage"`
	NetAmount       int64             `json:"netAmount" db:"net_amount"`
	Currency        string            `json:"currency" db:"currency"`
	Status          TransactionStatus `json:"status" db:"status"`
	ReferenceKind   ReferenceKind     `json:"referenceKind" db:"reference_kind"`
	ReferenceID     *uuid.UUID        `json:"referenceId,omitempty" db:"reference_id"`
	PSPIntentID     *string           `json:"pspIntentId,omitempty" db:"psp_intent_id"`
	PSPTransferID   *string           `json:"pspTransferId,omitempty" db:"psp_transfer_id"`
	PSPPayoutID     *string           `json:"pspPayoutId,omitempty" db:"psp_payout_id"`
	Description     string            `json:"description" db:"description"`
	ProcessedAt     *time.Time        `json:"processedAt,omitempty" db:"processed_at"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
}

// PayoutStatus is the payout lifecycle state.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCancelled  PayoutStatus = "cancelled"
)

// PayoutMethod selects the payout speed/cost tradeoff.
type PayoutMethod string

const (
	PayoutStandard PayoutMethod = "standard"
	PayoutInstant  PayoutMethod = "instant"
)

// Payout is a withdrawal of wallet balance to the user's bank/card.
type Payout struct {
	ID                uuid.UUID    `json:"id" db:"id"`
	UserID            uuid.UUID    `json:"userId" db:"user_id"`
	WalletID          uuid.UUID    `json:"walletId" db:"wallet_id"`
	Amount            int64        `json:"amount" db:"amount"`
	Status            PayoutStatus `json:"status" db:"status"`
	PSPPayoutID       *string      `json:"pspPayoutId,omitempty" db:"psp_payout_id"`
	PSPTransferID     *string      `json:"pspTransferId,omitempty" db:"psp_transfer_id"`
	Method            PayoutMethod `json:"method" db:"method"`
	FailureReason     *string      `json:"failureReason,omitempty" db:"failure_reason"`
	EstimatedArrival  *time.Time   `json:"estimatedArrival,omitempty" db:"estimated_arrival"`
	TransactionID     uuid.UUID    `json:"transactionId" db:"transaction_id"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time    `json:"updatedAt" db:"updated_at"`
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Kind   *TransactionKind
	Status *TransactionStatus
}

// Page is a simple offset-based pagination request/response pair.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// WithdrawRequest is the payout-initiation DTO.
type WithdrawRequest struct {
	Amount int64        `json:"amount" validate:"required,min=1"`
	Method PayoutMethod `json:"method" validate:"required,oneof=standard instant"`
}
