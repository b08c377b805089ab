package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni-backend/internal/domains/order/model"
)

// =====================================================
// ORDER REPOSITORY IMPLEMENTATION
// =====================================================
type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepoInterface {
	return &orderRepository{pool: pool}
}

func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateWithTx creates the order and its items in one transaction
func (r *orderRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, order_number, total, currency, status
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		order.ID,
		order.UserID,
		order.OrderNumber,
		order.Total,
		order.Currency,
		order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if _, err := tx.Exec(ctx, itemQuery, item.ID, item.OrderID, item.Name, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// GetByID gets an order with its items
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `
		SELECT id, user_id, order_number, total, currency, status,
			payment_intent_id, failure_reason, created_at, updated_at, confirmed_at
		FROM orders
		WHERE id = $1
	`

	order := &model.Order{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.PaymentIntentID,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) listItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `
		SELECT id, order_id, name, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListByUserID lists a user's orders, newest first
func (r *orderRepository) ListByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `
		SELECT id, user_id, order_number, total, currency, status,
			payment_intent_id, failure_reason, created_at, updated_at, confirmed_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order := &model.Order{}
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Total,
			&order.Currency,
			&order.Status,
			&order.PaymentIntentID,
			&order.FailureReason,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.ConfirmedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, total, rows.Err()
}

// MarkConfirmed moves a pending_payment order to confirmed
func (r *orderRepository) MarkConfirmed(ctx context.Context, id, paymentIntentID uuid.UUID) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1,
			payment_intent_id = $2,
			confirmed_at = NOW(),
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, model.OrderStatusConfirmed, paymentIntentID, id, model.OrderStatusPendingPayment)
	if err != nil {
		return false, fmt.Errorf("failed to confirm order: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkPaymentFailed moves a pending_payment order to payment_failed
func (r *orderRepository) MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1,
			failure_reason = NULLIF($2, ''),
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, model.OrderStatusPaymentFailed, reason, id, model.OrderStatusPendingPayment)
	if err != nil {
		return false, fmt.Errorf("failed to mark order payment failed: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
