// Package wallet layers payout/earnings operations over LedgerStore and
// PaymentGateway (spec sections 3/4.2/6 wallet endpoints). The ledger itself
// owns balance/transaction invariants; this package only orchestrates the
// Connect-account and payout side of those endpoints.
package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/ledger"
	"github.com/kayafamilly/carpool-core/internal/models"
	"github.com/kayafamilly/carpool-core/internal/payments"
)

// EarningsSummary is the aggregate shown on the driver earnings dashboard.
type EarningsSummary struct {
	TotalEarned    int64 `json:"totalEarned"`
	TotalWithdrawn int64 `json:"totalWithdrawn"`
	AvailableNow   int64 `json:"availableNow"`
}

// Service orchestrates wallet payout and Connect-account operations.
type Service struct {
	db      database.DBPool
	ledger  ledger.Store
	gateway payments.Gateway
}

// New builds a wallet Service.
func New(db database.DBPool, ledgerStore ledger.Store, gateway payments.Gateway) *Service {
	return &Service{db: db, ledger: ledgerStore, gateway: gateway}
}

// EarningsSummary reports a driver's lifetime totals alongside the
// currently-available balance.
func (s *Service) EarningsSummary(ctx context.Context, userID uuid.UUID) (*EarningsSummary, error) {
	w, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &EarningsSummary{TotalEarned: w.TotalEarned, TotalWithdrawn: w.TotalWithdrawn, AvailableNow: w.Balance}, nil
}

// CalculateEarnings previews the driver's net credit for a gross fare,
// applying the same split the ledger uses at settlement time so the UI can
// show a figure that will match the eventual transaction.
func (s *Service) CalculateEarnings(gross int64, feePercent float64) (netAmount, feeAmount int64) {
	scaled := float64(gross) * feePercent
	feeAmount = int64((scaled + 50) / 100)
	if feeAmount > gross {
		feeAmount = gross
	}
	return gross - feeAmount, feeAmount
}

// ListTransactions delegates to the ledger, giving wallet handlers a single
// dependency to call for every /wallet endpoint.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, filter models.TransactionFilter, page models.Page) ([]models.Transaction, int, error) {
	return s.ledger.ListTransactions(ctx, userID, filter, page)
}

// ConnectBank creates (or returns the existing) PSP Connect account for
// userID so payouts can be routed to it.
func (s *Service) ConnectBank(ctx context.Context, userID uuid.UUID, email string) (*payments.ConnectedAccount, error) {
	var existing string
	err := s.db.QueryRow(ctx, `SELECT connected_payout_account_id FROM users WHERE id = $1`, userID).Scan(&existing)
	if err != nil && err != pgx.ErrNoRows {
		return nil, apperr.ValidationWrap("load connect account failed", err)
	}
	if existing != "" {
		return s.gateway.GetAccount(ctx, existing)
	}

	acct, err := s.gateway.CreateConnectedAccount(ctx, userID.String(), email)
	if err != nil {
		return nil, apperr.PaymentWrap("create connect account failed", err)
	}
	if _, err := s.db.Exec(ctx, `UPDATE users SET connected_payout_account_id = $2 WHERE id = $1`, userID, acct.AccountID); err != nil {
		return nil, apperr.ValidationWrap("persist connect account failed", err)
	}
	return acct, nil
}

// BankStatus reports whether userID's Connect account can currently receive
// payouts.
func (s *Service) BankStatus(ctx context.Context, userID uuid.UUID) (*payments.ConnectedAccount, error) {
	var acctID string
	err := s.db.QueryRow(ctx, `SELECT connected_payout_account_id FROM users WHERE id = $1`, userID).Scan(&acctID)
	if err != nil {
		if err == pgx.ErrNoRows || acctID == "" {
			return nil, apperr.NotFound("no connected bank account")
		}
		return nil, apperr.ValidationWrap("load connect account failed", err)
	}
	if acctID == "" {
		return nil, apperr.NotFound("no connected bank account")
	}
	return s.gateway.GetAccount(ctx, acctID)
}

// Withdraw debits the wallet and initiates a PSP transfer to the user's
// Connect account, recording a Payout row linked to the debit Transaction.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, req models.WithdrawRequest) (*models.Payout, error) {
	var acctID string
	if err := s.db.QueryRow(ctx, `SELECT connected_payout_account_id FROM users WHERE id = $1`, userID).Scan(&acctID); err != nil || acctID == "" {
		return nil, apperr.Validation("connect a bank account before withdrawing")
	}

	w, err := s.ledger.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Balance < req.Amount {
		return nil, apperr.ErrInsufficientBalance
	}

	txn, err := s.ledger.Append(ctx, ledger.Entry{
		UserID:        userID,
		Kind:          models.TxWithdrawal,
		Status:        models.TxPending,
		GrossAmount:   req.Amount,
		FeePercentage: 0,
		ReferenceKind: models.RefPayout,
		Description:   "wallet withdrawal",
	})
	if err != nil {
		return nil, err
	}

	transfer, err := s.gateway.CreateTransfer(ctx, req.Amount, acctID, map[string]string{"userId": userID.String()})
	if err != nil {
		_, _ = s.ledger.Append(ctx, ledger.Entry{
			UserID: userID, Kind: models.TxWithdrawalFailed, Status: models.TxCompleted,
			GrossAmount: req.Amount, ReferenceKind: models.RefPayout, ReferenceID: &txn.ID,
			Description: "withdrawal reversal after PSP transfer failure",
		})
		return nil, apperr.PaymentWrap("payout transfer failed", err)
	}

	var payout models.Payout
	err = s.db.QueryRow(ctx, `
		INSERT INTO payouts (id, user_id, wallet_id, amount, status, psp_transfer_id, method, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'processing', $5, $6, $7, now(), now())
		RETURNING id, user_id, wallet_id, amount, status, psp_transfer_id, method, transaction_id, created_at, updated_at
	`, uuid.New(), userID, w.ID, req.Amount, transfer.TransferID, req.Method, txn.ID).Scan(
		&payout.ID, &payout.UserID, &payout.WalletID, &payout.Amount, &payout.Status,
		&payout.PSPTransferID, &payout.Method, &payout.TransactionID, &payout.CreatedAt, &payout.UpdatedAt)
	if err != nil {
		return nil, apperr.ValidationWrap("record payout failed", err)
	}
	return &payout, nil
}

// ListPayouts lists a user's payout history, most recent first.
func (s *Service) ListPayouts(ctx context.Context, userID uuid.UUID) ([]models.Payout, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, wallet_id, amount, status, psp_payout_id, psp_transfer_id, method,
		       failure_reason, estimated_arrival, transaction_id, created_at, updated_at
		FROM payouts WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, apperr.ValidationWrap("list payouts failed", err)
	}
	defer rows.Close()

	var out []models.Payout
	for rows.Next() {
		var p models.Payout
		if err := rows.Scan(&p.ID, &p.UserID, &p.WalletID, &p.Amount, &p.Status, &p.PSPPayoutID, &p.PSPTransferID,
			&p.Method, &p.FailureReason, &p.EstimatedArrival, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperr.ValidationWrap("scan payout failed", err)
		}
		out = append(out, p)
	}
	return out, nil
}
