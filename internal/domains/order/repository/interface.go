package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sokoni-backend/internal/domains/order/model"
)

// =====================================================
// ORDER REPOSITORY INTERFACE
// =====================================================
type OrderRepoInterface interface {
	// CreateWithTx creates the order and its items in one transaction
	CreateWithTx(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID gets an order with its items
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ListByUserID lists a user's orders, newest first
	ListByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.Order, int, error)

	// MarkConfirmed moves a pending_payment order to confirmed. Returns
	// true when this call performed the transition.
	MarkConfirmed(ctx context.Context, id, paymentIntentID uuid.UUID) (bool, error)

	// MarkPaymentFailed moves a pending_payment order to payment_failed
	MarkPaymentFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)

	// BeginTx starts a transaction
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// =====================================================
// CART REPOSITORY INTERFACE
// =====================================================
type CartRepoInterface interface {
	// AddItem adds an item to the user's cart
	AddItem(ctx context.Context, item *model.CartItem) error

	// ListByUserID lists the user's cart items
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*model.CartItem, error)

	// Clear removes all of the user's cart items, returning the count
	Clear(ctx context.Context, userID uuid.UUID) (int, error)
}
