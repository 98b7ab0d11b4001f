// Package ledger owns Wallet balances and the append-only Transaction log
// that must always agree with them (spec section 4.2).
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kayafamilly/carpool-core/internal/apperr"
	"github.com/kayafamilly/carpool-core/internal/database"
	"github.com/kayafamilly/carpool-core/internal/models"
)

// DefaultPlatformFeePercent is used when config does not override it.
const DefaultPlatformFeePercent = 10

// Store is the LedgerStore contract (spec section 4.2).
type Store interface {
	// Append inserts a Transaction and, if its kind affects balance,
	// atomically folds it into the wallet totals in the same write.
	Append(ctx context.Context, tx Entry) (*models.Transaction, error)

	// GetWallet returns the user's wallet, materializing a zero-balance one
	// on first access.
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)

	ListTransactions(ctx context.Context, userID uuid.UUID, filter models.TransactionFilter, page models.Page) ([]models.Transaction, int, error)

	// RecomputeBalance sums completed, balance-affecting transactions for a
	// wallet — an audit operation, independent of the stored balance column.
	RecomputeBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// Entry is the input to Append; ID/timestamps are assigned by the store.
type Entry struct {
	UserID        uuid.UUID
	Kind          models.TransactionKind
	Status        models.TransactionStatus
	GrossAmount   int64
	FeePercentage float64
	Currency      string
	ReferenceKind models.ReferenceKind
	ReferenceID   *uuid.UUID
	PSPIntentID   *string
	PSPTransferID *string
	PSPPayoutID   *string
	Description   string
}

type store struct {
	db database.DBPool
}

// New builds a Store backed by Postgres.
func New(db database.DBPool) Store {
	return &store{db: db}
}

// computeSplit applies the fee policy from spec section 4.2: feeAmount =
// round-half-up(gross*pct/100), netAmount = gross - fee. The fee is
// computed in float64 and truncated after adding 50; net is derived from it
// by subtraction, so driver credit + platform fee always equals gross
// exactly.
func computeSplit(gross int64, feePercent float64) (fee, net int64) {
	scaled := float64(gross) * feePercent
	fee = int64((scaled + 50) / 100) // round-half-up on the *100 fixed point
	if fee > gross {
		fee = gross
	}
	net = gross - fee
	return fee, net
}

// Append implements the atomic Transaction-insert + wallet-update contract:
// a reader must never observe one write without the other.
func (s *store) Append(ctx context.Context, e Entry) (*models.Transaction, error) {
	if e.Currency == "" {
		e.Currency = "eur"
	}

	fee, net := computeSplit(e.GrossAmount, e.FeePercentage)

	signedAmount := net
	switch e.Kind {
	case models.TxPlatformFee:
		signedAmount = fee
	case models.TxRidePayment, models.TxWithdrawal:
		signedAmount = -e.GrossAmount
	case models.TxRefund:
		signedAmount = e.GrossAmount
	case models.TxRideEarning, models.TxBonus, models.TxAdjustment:
		signedAmount = net
	case models.TxWithdrawalFailed:
		signedAmount = e.GrossAmount
	}

	var txn models.Transaction

	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		walletID, err := s.getOrCreateWalletTx(ctx, tx, e.UserID)
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO transactions (
				id, wallet_id, user_id, kind, amount, gross_amount, fee_amount,
				fee_percentage, net_amount, currency, status, reference_kind,
				reference_id, psp_intent_id, psp_transfer_id, psp_payout_id,
				description, processed_at, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17,
				CASE WHEN $11 = 'completed' THEN now() ELSE NULL END, now()
			)
			RETURNING id, processed_at, created_at
		`,
			uuid.New(), walletID, e.UserID, e.Kind, signedAmount, e.GrossAmount, fee,
			e.FeePercentage, net, e.Currency, e.Status, e.ReferenceKind,
			e.ReferenceID, e.PSPIntentID, e.PSPTransferID, e.PSPPayoutID, e.Description,
		).Scan(&txn.ID, &txn.ProcessedAt, &txn.CreatedAt)
		if err != nil {
			return apperr.ValidationWrap("append transaction failed", err)
		}

		txn.WalletID = walletID
		txn.UserID = e.UserID
		txn.Kind = e.Kind
		txn.Amount = signedAmount
		txn.GrossAmount = e.GrossAmount
		txn.FeeAmount = fee
		txn.FeePercentage = e.FeePercentage
		txn.NetAmount = net
		txn.Currency = e.Currency
		txn.Status = e.Status
		txn.ReferenceKind = e.ReferenceKind
		txn.ReferenceID = e.ReferenceID
		txn.PSPIntentID = e.PSPIntentID
		txn.PSPTransferID = e.PSPTransferID
		txn.PSPPayoutID = e.PSPPayoutID
		txn.Description = e.Description

		if e.Status != models.TxCompleted || !e.Kind.AffectsBalance() {
			return nil
		}

		tag, err := tx.Exec(ctx, `
			UPDATE wallets
			SET balance = balance + $2,
			    total_earned = total_earned + GREATEST($3, 0),
			    total_withdrawn = total_withdrawn + GREATEST(-$3, 0),
			    updated_at = now()
			WHERE id = $1 AND balance + $2 >= 0
		`, walletID, signedAmount, signedAmount)
		if err != nil {
			return apperr.ValidationWrap("wallet balance update failed", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.Capacity("insufficient wallet balance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (s *store) getOrCreateWalletTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (uuid.UUID, error) {
	var walletID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM wallets WHERE user_id = $1`, userID).Scan(&walletID)
	if err == nil {
		return walletID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, apperr.ValidationWrap("lookup wallet failed", err)
	}

	walletID = uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, pending_balance, total_earned, total_withdrawn, currency, is_active, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, 'eur', true, now(), now())
		ON CONFLICT (user_id) DO NOTHING
	`, walletID, userID)
	if err != nil {
		return uuid.Nil, apperr.ValidationWrap("create wallet failed", err)
	}

	// Another caller may have raced us through ON CONFLICT DO NOTHING; re-read
	// to get the winning row's id.
	err = tx.QueryRow(ctx, `SELECT id FROM wallets WHERE user_id = $1`, userID).Scan(&walletID)
	if err != nil {
		return uuid.Nil, apperr.ValidationWrap("lookup wallet after create failed", err)
	}
	return walletID, nil
}

// GetWallet materializes a zero-balance wallet on first access, per spec
// section 4.2.
func (s *store) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, balance, pending_balance, total_earned, total_withdrawn, currency, is_active, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.PendingBalance, &w.TotalEarned, &w.TotalWithdrawn, &w.Currency, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err == nil {
		return &w, nil
	}
	if err != pgx.ErrNoRows {
		return nil, apperr.ValidationWrap("lookup wallet failed", err)
	}

	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, walletErr := s.getOrCreateWalletTx(ctx, tx, userID)
		return walletErr
	})
	if err != nil {
		return nil, err
	}

	return s.GetWallet(ctx, userID)
}

func (s *store) ListTransactions(ctx context.Context, userID uuid.UUID, filter models.TransactionFilter, page models.Page) ([]models.Transaction, int, error) {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Page <= 0 {
		page.Page = 1
	}
	offset := (page.Page - 1) * page.Limit

	where := `WHERE user_id = $1`
	args := []any{userID}
	argN := 2
	if filter.Kind != nil {
		where += fmt.Sprintf(" AND kind = $%d", argN)
		args = append(args, *filter.Kind)
		argN++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, *filter.Status)
		argN++
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.ValidationWrap("count transactions failed", err)
	}

	args = append(args, page.Limit, offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id, wallet_id, user_id, kind, amount, gross_amount, fee_amount, fee_percentage,
		       net_amount, currency, status, reference_kind, reference_id, psp_intent_id,
		       psp_transfer_id, psp_payout_id, description, processed_at, created_at
		FROM transactions %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argN, argN+1), args...)
	if err != nil {
		return nil, 0, apperr.ValidationWrap("list transactions failed", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Kind, &t.Amount, &t.GrossAmount, &t.FeeAmount,
			&t.FeePercentage, &t.NetAmount, &t.Currency, &t.Status, &t.ReferenceKind, &t.ReferenceID,
			&t.PSPIntentID, &t.PSPTransferID, &t.PSPPayoutID, &t.Description, &t.ProcessedAt, &t.CreatedAt); err != nil {
			return nil, 0, apperr.ValidationWrap("scan transaction failed", err)
		}
		out = append(out, t)
	}
	return out, total, nil
}

// RecomputeBalance sums completed, balance-affecting transactions directly,
// independent of the stored wallets.balance column, for audit comparison.
func (s *store) RecomputeBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var sum int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE wallet_id = $1 AND status = 'completed' AND kind != 'platform_fee'
	`, walletID).Scan(&sum)
	if err != nil {
		return 0, apperr.ValidationWrap("recompute balance failed", err)
	}
	return sum, nil
}
