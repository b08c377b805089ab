package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT INTENT ENTITY
// =====================================================
// PaymentIntent tracks one STK push attempt from initiation to terminal
// outcome. The status is monotonic once terminal: repository writes are
// conditional on the row still being pending.
type PaymentIntent struct {
	ID     uuid.UUID `json:"id" db:"id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// What this intent pays for
	Kind        string    `json:"kind" db:"kind"`
	ReferenceID uuid.UUID `json:"reference_id" db:"reference_id"`

	// Payer and amount
	Phone    string          `json:"phone" db:"phone"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`

	// Status tracking
	Status        string  `json:"status" db:"status"`
	FailureReason *string `json:"failure_reason,omitempty" db:"failure_reason"`

	// Gateway correlation. Absent until the push request is acknowledged.
	CheckoutRequestID *string `json:"checkout_request_id,omitempty" db:"checkout_request_id"`
	MpesaReceipt      *string `json:"mpesa_receipt,omitempty" db:"mpesa_receipt"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty" db:"settled_at"`
}

// IsTerminal reports whether the intent has reached a final status.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status != IntentStatusPending
}

// IsSuccessful reports whether the payment went through.
func (p *PaymentIntent) IsSuccessful() bool {
	return p.Status == IntentStatusCompleted
}

// CanQueryGateway reports whether the gateway-query channel may run.
// The active query needs the CheckoutRequestID from the push ack.
func (p *PaymentIntent) CanQueryGateway() bool {
	return p.CheckoutRequestID != nil && *p.CheckoutRequestID != ""
}

// Observation is one status report from a reconciliation channel.
type Observation struct {
	Source  string
	Status  string // raw token as delivered by the channel
	Receipt string
	Reason  string
}

// Outcome is the settled result of one reconciliation run.
type Outcome struct {
	State   string // success, failed, indeterminate, cancelled
	Receipt string
	Reason  string
	Source  string // channel that won the race, empty for timeout/cancel
}
