package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sokoni-backend/internal/domains/order/model"
	repo "sokoni-backend/internal/domains/order/repository"
	"sokoni-backend/pkg/logger"
)

// =====================================================
// ORDER SERVICE IMPLEMENTATION
// =====================================================
type orderService struct {
	orderRepo repo.OrderRepoInterface
	cartRepo  repo.CartRepoInterface
}

func NewOrderService(orderRepo repo.OrderRepoInterface, cartRepo repo.CartRepoInterface) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
	}
}

// =====================================================
// CART
// =====================================================

func (s *orderService) AddCartItem(ctx context.Context, userID uuid.UUID, req model.AddCartItemRequest) (*model.CartItem, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewOrderError(model.ErrCodeInvalidItem, "Invalid cart item", err)
	}

	item := &model.CartItem{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     strings.TrimSpace(req.Name),
		Quantity: req.Quantity,
		Price:    req.Price,
	}

	if err := s.cartRepo.AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *orderService) GetCart(ctx context.Context, userID uuid.UUID) ([]*model.CartItem, error) {
	return s.cartRepo.ListByUserID(ctx, userID)
}

// =====================================================
// CHECKOUT
// =====================================================

// Checkout creates an order from the cart
//
// Business Logic Flow:
// 1. Validate request
// 2. Load cart, reject if empty
// 3. Total up the items
// 4. Create order + items in one transaction, status pending_payment
//
// The cart is NOT cleared here. That happens after the payment settles
// successfully, so an abandoned payment leaves the cart intact.
func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID, req model.CheckoutRequest) (*model.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewOrderError(model.ErrCodeInvalidItem, "Invalid checkout request", err)
	}

	cartItems, err := s.cartRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, model.NewEmptyCartError()
	}

	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		total = total.Add(ci.Price.Mul(decimal.NewFromInt(int64(ci.Quantity))))
		items = append(items, model.OrderItem{
			ID:       uuid.New(),
			Name:     ci.Name,
			Quantity: ci.Quantity,
			Price:    ci.Price,
		})
	}

	order := &model.Order{
		ID:          uuid.New(),
		UserID:      userID,
		OrderNumber: generateOrderNumber(),
		Total:       total,
		Currency:    "KES",
		Status:      model.OrderStatusPendingPayment,
		Items:       items,
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.orderRepo.CreateWithTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	logger.Info("order created", map[string]interface{}{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Total.String(),
	})

	return &model.CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
		Currency:    order.Currency,
		Status:      order.Status,
	}, nil
}

// generateOrderNumber builds a human readable order reference.
func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("SKN-%s-%s", time.Now().Format("20060102"), suffix)
}

// =====================================================
// READS
// =====================================================

func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, model.NewOrderNotFoundError(orderID.String())
	}
	return model.NewOrderResponse(order), nil
}

func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.OrderResponse, int, error) {
	orders, total, err := s.orderRepo.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*model.OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, model.NewOrderResponse(order))
	}
	return responses, total, nil
}
