package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"sokoni-backend/internal/domains/wallet/model"
)

// =====================================================
// WALLET REPOSITORY INTERFACE
// =====================================================
type WalletRepoInterface interface {
	// GetBalance returns the user's wallet, creating a zero-balance row
	// on first access.
	GetBalance(ctx context.Context, userID uuid.UUID) (*model.Wallet, error)

	// CreateTransaction creates a pending wallet transaction
	CreateTransaction(ctx context.Context, txn *model.WalletTransaction) error

	// GetTransaction gets a wallet transaction by ID
	GetTransaction(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error)

	// CompleteDeposit marks a pending deposit completed and credits the
	// balance in one transaction. Returns true when this call performed
	// the transition, so the credit happens at most once.
	CompleteDeposit(ctx context.Context, txnID uuid.UUID, paymentIntentID uuid.UUID) (bool, error)

	// FailDeposit marks a pending deposit failed
	FailDeposit(ctx context.Context, txnID uuid.UUID, reason string) (bool, error)

	// ListTransactions lists the user's transactions, newest first
	ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.WalletTransaction, int, error)
}

// =====================================================
// WALLET REPOSITORY IMPLEMENTATION
// =====================================================
type walletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) WalletRepoInterface {
	return &walletRepository{pool: pool}
}

func (r *walletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	query := `
		INSERT INTO wallets (user_id, balance, currency)
		VALUES ($1, 0, 'KES')
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, currency, updated_at
	`

	wallet := &model.Wallet{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.Balance,
		&wallet.Currency,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (r *walletRepository) CreateTransaction(ctx context.Context, txn *model.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (id, user_id, type, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		txn.ID,
		txn.UserID,
		txn.Type,
		txn.Amount,
		txn.Status,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

func (r *walletRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error) {
	query := `
		SELECT id, user_id, type, amount, status, payment_intent_id,
			failure_reason, created_at, completed_at
		FROM wallet_transactions
		WHERE id = $1
	`

	txn := &model.WalletTransaction{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Type,
		&txn.Amount,
		&txn.Status,
		&txn.PaymentIntentID,
		&txn.FailureReason,
		&txn.CreatedAt,
		&txn.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get wallet transaction: %w", err)
	}
	return txn, nil
}

// CompleteDeposit moves a pending deposit to completed and credits the
// balance. The conditional UPDATE and the credit share one database
// transaction: either both land or neither does.
func (r *walletRepository) CompleteDeposit(ctx context.Context, txnID uuid.UUID, paymentIntentID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		userID uuid.UUID
		amount decimal.Decimal
	)
	query := `
		UPDATE wallet_transactions
		SET status = $1,
			payment_intent_id = $2,
			completed_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING user_id, amount
	`

	err = tx.QueryRow(ctx, query,
		model.TransactionStatusCompleted,
		paymentIntentID,
		txnID,
		model.TransactionStatusPending,
	).Scan(&userID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already completed or failed; nothing to credit.
			return false, nil
		}
		return false, fmt.Errorf("failed to complete deposit: %w", err)
	}

	creditQuery := `
		INSERT INTO wallets (user_id, balance, currency)
		VALUES ($1, $2, 'KES')
		ON CONFLICT (user_id)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, creditQuery, userID, amount); err != nil {
		return false, fmt.Errorf("failed to credit wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return true, nil
}

func (r *walletRepository) FailDeposit(ctx context.Context, txnID uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE wallet_transactions
		SET status = $1,
			failure_reason = NULLIF($2, ''),
			completed_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, model.TransactionStatusFailed, reason, txnID, model.TransactionStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to fail deposit: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.WalletTransaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count wallet transactions: %w", err)
	}

	query := `
		SELECT id, user_id, type, amount, status, payment_intent_id,
			failure_reason, created_at, completed_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []*model.WalletTransaction
	for rows.Next() {
		txn := &model.WalletTransaction{}
		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Type,
			&txn.Amount,
			&txn.Status,
			&txn.PaymentIntentID,
			&txn.FailureReason,
			&txn.CreatedAt,
			&txn.CompletedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	return txns, total, rows.Err()
}
