package model

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// WALLET ENTITIES
// =====================================================

type Wallet struct {
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

const (
	TransactionTypeDeposit = "deposit"

	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// WalletTransaction records one balance movement. Deposits start
// pending and complete when the backing payment settles.
type WalletTransaction struct {
	ID     uuid.UUID       `json:"id" db:"id"`
	UserID uuid.UUID       `json:"user_id" db:"user_id"`
	Type   string          `json:"type" db:"type"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
	Status string          `json:"status" db:"status"`

	PaymentIntentID *uuid.UUID `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	FailureReason   *string    `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// =====================================================
// ERRORS
// =====================================================

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("wallet transaction not found")
)

const (
	ErrCodeTransactionNotFound = "WAL001"
	ErrCodeInvalidAmount       = "WAL002"
)

type WalletError struct {
	Code    string
	Message string
	Err     error
}

func (e *WalletError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WalletError) Unwrap() error {
	return e.Err
}

func NewWalletError(code, message string, err error) *WalletError {
	return &WalletError{Code: code, Message: message, Err: err}
}

// =====================================================
// DTOs
// =====================================================

type StartDepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r StartDepositRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.By(positiveAmount)),
	)
}

func positiveAmount(value interface{}) error {
	amount, _ := value.(decimal.Decimal)
	if amount.LessThanOrEqual(decimal.Zero) {
		return validation.NewError("validation_amount", "must be greater than zero")
	}
	return nil
}

type StartDepositResponse struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
}

type BalanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}
