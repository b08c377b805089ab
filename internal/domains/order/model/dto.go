package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// CART REQUESTS
// =====================================================

type AddCartItemRequest struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (r AddCartItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&r.Price, validation.By(positiveAmount)),
	)
}

func positiveAmount(value interface{}) error {
	amount, _ := value.(decimal.Decimal)
	if amount.LessThanOrEqual(decimal.Zero) {
		return validation.NewError("validation_amount", "must be greater than zero")
	}
	return nil
}

// =====================================================
// CHECKOUT REQUEST/RESPONSE
// =====================================================

// CheckoutRequest turns the user's cart into an order awaiting payment.
type CheckoutRequest struct {
	Phone string `json:"phone"`
}

func (r CheckoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required),
	)
}

type CheckoutResponse struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
}

// =====================================================
// ORDER RESPONSE
// =====================================================

type OrderResponse struct {
	OrderID         uuid.UUID       `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentIntentID *uuid.UUID      `json:"payment_intent_id,omitempty"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
}

func NewOrderResponse(order *Order) *OrderResponse {
	return &OrderResponse{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		Total:           order.Total,
		Currency:        order.Currency,
		Status:          order.Status,
		PaymentIntentID: order.PaymentIntentID,
		FailureReason:   order.FailureReason,
		Items:           order.Items,
		CreatedAt:       order.CreatedAt,
		ConfirmedAt:     order.ConfirmedAt,
	}
}
