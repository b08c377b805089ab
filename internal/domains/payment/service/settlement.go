package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sokoni-backend/internal/domains/payment/model"
	repo "sokoni-backend/internal/domains/payment/repository"
	"sokoni-backend/internal/infrastructure/realtime"
	"sokoni-backend/pkg/logger"
)

// =====================================================
// SETTLEMENT HOOKS
// =====================================================

// SettlementHook receives the downstream side effects of a settled
// payment. One hook per intent kind (order confirmation, wallet credit).
// The settler guarantees at-most-once dispatch per intent.
type SettlementHook interface {
	OnPaymentSuccess(ctx context.Context, intent *model.PaymentIntent) error
	OnPaymentFailure(ctx context.Context, intent *model.PaymentIntent, reason string) error
}

// ReferenceResolver vouches for the thing an intent pays for before any
// push goes out. One resolver per intent kind. It must confirm the
// reference exists, belongs to the user and is still awaiting payment,
// and it reports the server-side amount owed so the charge cannot be
// chosen by the client.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, userID, referenceID uuid.UUID) (decimal.Decimal, error)
}

// =====================================================
// SETTLER
// =====================================================
// Settler is the single funnel for terminal outcomes. Every channel that
// can learn a payment's fate (realtime, poll, gateway query, webhook,
// sweep, manual cancel) reports here; the conditional status update in
// the repository decides which report actually lands.

type Settler struct {
	intentRepo repo.IntentRepoInterface
	feed       realtime.Feed

	mu    sync.RWMutex
	hooks map[string]SettlementHook
}

func NewSettler(intentRepo repo.IntentRepoInterface, feed realtime.Feed) *Settler {
	return &Settler{
		intentRepo: intentRepo,
		feed:       feed,
		hooks:      make(map[string]SettlementHook),
	}
}

// RegisterHook wires the side effects for one intent kind
func (s *Settler) RegisterHook(kind string, hook SettlementHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[kind] = hook
}

func (s *Settler) hookFor(kind string) SettlementHook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks[kind]
}

// Settle applies a terminal outcome to an intent.
//
// Returns the current intent and whether this call performed the
// transition. When applied is false the intent was already terminal and
// no side effects ran; callers can treat that as success.
//
// An indeterminate outcome never writes: the record stays pending so a
// later webhook, sweep or manual check can still resolve it.
func (s *Settler) Settle(ctx context.Context, intentID uuid.UUID, outcome model.Outcome) (*model.PaymentIntent, bool, error) {
	var (
		applied bool
		err     error
	)

	switch outcome.State {
	case model.OutcomeSuccess:
		applied, err = s.intentRepo.MarkCompleted(ctx, intentID, outcome.Receipt)
	case model.OutcomeFailed:
		applied, err = s.intentRepo.MarkFailed(ctx, intentID, outcome.Reason)
	case model.OutcomeCancelled:
		applied, err = s.intentRepo.MarkCancelled(ctx, intentID, outcome.Reason)
	case model.OutcomeIndeterminate:
		intent, getErr := s.intentRepo.GetByID(ctx, intentID)
		return intent, false, getErr
	default:
		return nil, false, fmt.Errorf("unknown outcome state: %s", outcome.State)
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to settle intent %s: %w", intentID, err)
	}

	intent, err := s.intentRepo.GetByID(ctx, intentID)
	if err != nil {
		return nil, applied, err
	}

	if !applied {
		return intent, false, nil
	}

	logger.Info("payment intent settled", map[string]interface{}{
		"intent_id": intentID.String(),
		"status":    intent.Status,
		"source":    outcome.Source,
	})

	// Tell everyone still watching. Failure to publish is not fatal: the
	// poll channel converges on the same row.
	ev := realtime.StatusEvent{
		IntentID: intentID,
		Status:   intent.Status,
	}
	if intent.MpesaReceipt != nil {
		ev.Receipt = *intent.MpesaReceipt
	}
	if intent.FailureReason != nil {
		ev.Reason = *intent.FailureReason
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish settlement event", map[string]interface{}{
			"intent_id": intentID.String(),
			"error":     err.Error(),
		})
	}

	// Side effects run only on the call that won the conditional update.
	hook := s.hookFor(intent.Kind)
	if hook == nil {
		return intent, true, nil
	}

	var hookErr error
	switch outcome.State {
	case model.OutcomeSuccess:
		hookErr = hook.OnPaymentSuccess(ctx, intent)
	case model.OutcomeFailed, model.OutcomeCancelled:
		reason := outcome.Reason
		if reason == "" && intent.FailureReason != nil {
			reason = *intent.FailureReason
		}
		hookErr = hook.OnPaymentFailure(ctx, intent, reason)
	}
	if hookErr != nil {
		// The intent itself is settled; the hook owns its own retry story.
		logger.Error("settlement hook failed for intent "+intentID.String(), hookErr)
	}

	return intent, true, nil
}
