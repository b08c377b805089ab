package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sokoni-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT INTENT REPOSITORY INTERFACE
// =====================================================
// Terminal writes are conditional on the row still being pending, so a
// second settlement attempt is a no-op rather than an overwrite.
type IntentRepoInterface interface {
	// Create creates a payment intent in pending state
	Create(ctx context.Context, intent *model.PaymentIntent) error

	// GetByID gets an intent by ID
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error)

	// GetByCheckoutRequestID gets an intent by the gateway correlation ID
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentIntent, error)

	// SetCheckoutRequestID records the push acknowledgement correlation ID
	SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error

	// MarkCompleted moves a pending intent to completed. Returns true when
	// this call performed the transition, false when the row was already
	// terminal.
	MarkCompleted(ctx context.Context, id uuid.UUID, receipt string) (bool, error)

	// MarkFailed moves a pending intent to failed. Same conditional
	// semantics as MarkCompleted.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)

	// MarkCancelled moves a pending intent to cancelled.
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string) (bool, error)

	// FindStalePending lists pending intents older than minAge, for the
	// sweep job that rescues lost callbacks.
	FindStalePending(ctx context.Context, minAge time.Duration, limit int) ([]*model.PaymentIntent, error)

	// ListByUserID lists a user's intents, newest first
	ListByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.PaymentIntent, int, error)
}
