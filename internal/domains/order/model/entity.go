package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// ORDER ENTITY
// =====================================================
type Order struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	OrderNumber string    `json:"order_number" db:"order_number"`

	Total    decimal.Decimal `json:"total" db:"total"`
	Currency string          `json:"currency" db:"currency"`
	Status   string          `json:"status" db:"status"`

	// Set once payment settles
	PaymentIntentID *uuid.UUID `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	FailureReason   *string    `json:"failure_reason,omitempty" db:"failure_reason"`

	Items []OrderItem `json:"items,omitempty"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

type OrderItem struct {
	ID       uuid.UUID       `json:"id" db:"id"`
	OrderID  uuid.UUID       `json:"order_id" db:"order_id"`
	Name     string          `json:"name" db:"name"`
	Quantity int             `json:"quantity" db:"quantity"`
	Price    decimal.Decimal `json:"price" db:"price"`
}

// IsOpen reports whether the order still awaits payment.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPendingPayment
}

// =====================================================
// CART ENTITY
// =====================================================
type CartItem struct {
	ID       uuid.UUID       `json:"id" db:"id"`
	UserID   uuid.UUID       `json:"user_id" db:"user_id"`
	Name     string          `json:"name" db:"name"`
	Quantity int             `json:"quantity" db:"quantity"`
	Price    decimal.Decimal `json:"price" db:"price"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// =====================================================
// JOB PAYLOADS
// =====================================================

// ConfirmOrderPayload drives the post-payment confirmation job.
type ConfirmOrderPayload struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	OrderNumber string `json:"order_number"`
}
