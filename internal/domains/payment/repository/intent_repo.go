package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT INTENT REPOSITORY IMPLEMENTATION
// =====================================================
type intentRepository struct {
	pool *pgxpool.Pool
}

func NewIntentRepository(pool *pgxpool.Pool) IntentRepoInterface {
	return &intentRepository{pool: pool}
}

const intentColumns = `
	id, user_id, kind, reference_id, phone, amount, currency,
	status, failure_reason, checkout_request_id, mpesa_receipt,
	created_at, settled_at
`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	intent := &model.PaymentIntent{}
	err := row.Scan(
		&intent.ID,
		&intent.UserID,
		&intent.Kind,
		&intent.ReferenceID,
		&intent.Phone,
		&intent.Amount,
		&intent.Currency,
		&intent.Status,
		&intent.FailureReason,
		&intent.CheckoutRequestID,
		&intent.MpesaReceipt,
		&intent.CreatedAt,
		&intent.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// Create creates a payment intent in pending state
func (r *intentRepository) Create(ctx context.Context, intent *model.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, user_id, kind, reference_id, phone, amount, currency, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		intent.ID,
		intent.UserID,
		intent.Kind,
		intent.ReferenceID,
		intent.Phone,
		intent.Amount,
		intent.Currency,
		intent.Status,
	).Scan(&intent.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	return nil
}

// GetByID gets an intent by ID
func (r *intentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	intent, err := scanIntent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return intent, nil
}

// GetByCheckoutRequestID gets an intent by the gateway correlation ID
func (r *intentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE checkout_request_id = $1`

	intent, err := scanIntent(r.pool.QueryRow(ctx, query, checkoutRequestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent by checkout request: %w", err)
	}

	return intent, nil
}

// SetCheckoutRequestID records the push acknowledgement correlation ID
func (r *intentRepository) SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	query := `
		UPDATE payment_intents
		SET checkout_request_id = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, checkoutRequestID, id)
	if err != nil {
		return fmt.Errorf("failed to set checkout request ID: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrIntentNotFound
	}

	return nil
}

// =====================================================
// TERMINAL TRANSITIONS
// =====================================================
// All three guards on status = 'pending'. Whoever lands first wins;
// everyone else gets applied = false.

// MarkCompleted moves a pending intent to completed
func (r *intentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, receipt string) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $1,
			mpesa_receipt = NULLIF($2, ''),
			settled_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, model.IntentStatusCompleted, receipt, id, model.IntentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark intent completed: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkFailed moves a pending intent to failed
func (r *intentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $1,
			failure_reason = NULLIF($2, ''),
			settled_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, model.IntentStatusFailed, reason, id, model.IntentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark intent failed: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkCancelled moves a pending intent to cancelled
func (r *intentRepository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $1,
			failure_reason = NULLIF($2, ''),
			settled_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, model.IntentStatusCancelled, reason, id, model.IntentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark intent cancelled: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// FindStalePending lists pending intents older than minAge
func (r *intentRepository) FindStalePending(ctx context.Context, minAge time.Duration, limit int) ([]*model.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE status = $1
		  AND checkout_request_id IS NOT NULL
		  AND created_at < NOW() - $2::interval
		ORDER BY created_at ASC
		LIMIT $3
	`

	interval := fmt.Sprintf("%d seconds", int(minAge.Seconds()))

	rows, err := r.pool.Query(ctx, query, model.IntentStatusPending, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale intents: %w", err)
	}
	defer rows.Close()

	var intents []*model.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale intent: %w", err)
		}
		intents = append(intents, intent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale intents: %w", err)
	}

	return intents, nil
}

// ListByUserID lists a user's intents, newest first
func (r *intentRepository) ListByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.PaymentIntent, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	countQuery := `SELECT COUNT(*) FROM payment_intents WHERE user_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payment intents: %w", err)
	}

	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payment intents: %w", err)
	}
	defer rows.Close()

	var intents []*model.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment intent: %w", err)
		}
		intents = append(intents, intent)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payment intents: %w", err)
	}

	return intents, total, nil
}
