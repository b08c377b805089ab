package model

// =====================================================
// ORDER STATUS
// =====================================================
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPaymentFailed  = "payment_failed"
	OrderStatusCancelled      = "cancelled"
)

// =====================================================
// INTERNAL ERROR CODES
// =====================================================
const (
	ErrCodeOrderNotFound  = "ORD001"
	ErrCodeEmptyCart      = "ORD002"
	ErrCodeOrderNotOpen   = "ORD003"
	ErrCodeInvalidItem    = "ORD004"
)
