package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrIntentNotFound     = errors.New("payment intent not found")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrAmountTooSmall     = errors.New("amount below minimum")
	ErrPushRejected       = errors.New("push request rejected by gateway")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrAlreadySettled     = errors.New("payment intent already settled")
	ErrNotReconciling     = errors.New("no active reconciliation for intent")
	ErrInvalidKind        = errors.New("invalid intent kind")
	ErrInvalidReference   = errors.New("payment reference not payable")
	ErrAmountMismatch     = errors.New("amount does not match the referenced charge")
)

// =====================================================
// CUSTOM PAYMENT ERROR
// =====================================================

type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewIntentNotFoundError(intentID string) *PaymentError {
	return NewPaymentError(
		ErrCodeIntentNotFound,
		fmt.Sprintf("Payment intent not found: %s", intentID),
		ErrIntentNotFound,
	)
}

func NewInvalidPhoneError(phone string) *PaymentError {
	return NewPaymentError(
		ErrCodeInvalidPhone,
		fmt.Sprintf("Invalid M-Pesa phone number: %s", phone),
		ErrInvalidPhone,
	)
}

func NewAmountTooSmallError(minimum int64) *PaymentError {
	return NewPaymentError(
		ErrCodeAmountTooSmall,
		fmt.Sprintf("Amount must be at least %d KES", minimum),
		ErrAmountTooSmall,
	)
}

func NewPushRejectedError(reason string) *PaymentError {
	return NewPaymentError(
		ErrCodePushRejected,
		fmt.Sprintf("STK push rejected: %s", reason),
		ErrPushRejected,
	)
}

func NewNotReconcilingError(intentID string) *PaymentError {
	return NewPaymentError(
		ErrCodeNotReconciling,
		fmt.Sprintf("No active reconciliation for intent %s", intentID),
		ErrNotReconciling,
	)
}

func NewInvalidReferenceError(detail string) *PaymentError {
	return NewPaymentError(
		ErrCodeInvalidReference,
		fmt.Sprintf("Payment reference not payable: %s", detail),
		ErrInvalidReference,
	)
}

func NewAmountMismatchError(expected, got string) *PaymentError {
	return NewPaymentError(
		ErrCodeAmountMismatch,
		fmt.Sprintf("Amount %s does not match the referenced charge of %s", got, expected),
		ErrAmountMismatch,
	)
}
