package service

import (
	"context"

	"github.com/google/uuid"

	"sokoni-backend/internal/domains/order/model"
)

// =====================================================
// ORDER SERVICE INTERFACE
// =====================================================
type OrderService interface {
	// AddCartItem adds an item to the user's cart
	AddCartItem(ctx context.Context, userID uuid.UUID, req model.AddCartItemRequest) (*model.CartItem, error)

	// GetCart returns the user's cart items
	GetCart(ctx context.Context, userID uuid.UUID) ([]*model.CartItem, error)

	// Checkout turns the cart into an order awaiting payment. The caller
	// then initiates an STK push against the returned order ID.
	Checkout(ctx context.Context, userID uuid.UUID, req model.CheckoutRequest) (*model.CheckoutResponse, error)

	// GetOrder returns an order the user owns
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.OrderResponse, error)

	// ListOrders lists the user's orders
	ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.OrderResponse, int, error)
}
