package model

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotOpen  = errors.New("order is not awaiting payment")
)

type OrderError struct {
	Code    string
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func NewOrderError(code, message string, err error) *OrderError {
	return &OrderError{Code: code, Message: message, Err: err}
}

func NewOrderNotFoundError(orderID string) *OrderError {
	return NewOrderError(ErrCodeOrderNotFound, fmt.Sprintf("Order not found: %s", orderID), ErrOrderNotFound)
}

func NewEmptyCartError() *OrderError {
	return NewOrderError(ErrCodeEmptyCart, "Cannot checkout an empty cart", ErrEmptyCart)
}
