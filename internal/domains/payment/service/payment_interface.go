package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sokoni-backend/internal/domains/payment/model"
)

// =====================================================
// PAYMENT SERVICE INTERFACE
// =====================================================
type PaymentService interface {
	// InitiatePayment validates the request, creates a pending intent,
	// sends the STK push and starts reconciliation.
	InitiatePayment(ctx context.Context, userID uuid.UUID, req model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error)

	// GetIntentStatus returns the current state of an intent the user owns.
	GetIntentStatus(ctx context.Context, userID, intentID uuid.UUID) (*model.IntentStatusResponse, error)

	// ListIntents lists the user's intents, newest first.
	ListIntents(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.IntentStatusResponse, int, error)

	// CheckIntentNow forces an immediate gateway query. Works both while
	// a reconciliation is active and after it has given up.
	CheckIntentNow(ctx context.Context, userID, intentID uuid.UUID) (*model.IntentStatusResponse, error)

	// CancelIntent abandons a pending payment at the user's request.
	CancelIntent(ctx context.Context, userID, intentID uuid.UUID) (*model.IntentStatusResponse, error)

	// HandleStkCallback processes the provider's asynchronous confirmation.
	HandleStkCallback(ctx context.Context, req model.StkCallbackRequest) error

	// SweepStaleIntents queries the gateway for pending intents older
	// than minAge and settles the ones with a terminal answer. Returns
	// how many intents were settled.
	SweepStaleIntents(ctx context.Context, minAge time.Duration, limit int) (int, error)

	// RegisterHook wires settlement side effects for one intent kind.
	RegisterHook(kind string, hook SettlementHook)

	// RegisterResolver wires the reference check for one intent kind.
	// Initiation refuses kinds without a registered resolver.
	RegisterResolver(kind string, resolver ReferenceResolver)

	// Shutdown stops all active reconciliations.
	Shutdown(ctx context.Context) error
}
