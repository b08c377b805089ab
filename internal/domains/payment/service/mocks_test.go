package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sokoni-backend/internal/domains/payment/model"
	"sokoni-backend/internal/infrastructure/realtime"
)

// =====================================================
// IN-MEMORY INTENT REPOSITORY
// =====================================================

type fakeIntentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*model.PaymentIntent
}

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{intents: make(map[uuid.UUID]*model.PaymentIntent)}
}

func (r *fakeIntentRepo) clone(intent *model.PaymentIntent) *model.PaymentIntent {
	cp := *intent
	return &cp
}

func (r *fakeIntentRepo) Create(ctx context.Context, intent *model.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent.CreatedAt = time.Now()
	r.intents[intent.ID] = r.clone(intent)
	return nil
}

func (r *fakeIntentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return nil, model.ErrIntentNotFound
	}
	return r.clone(intent), nil
}

func (r *fakeIntentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.CheckoutRequestID != nil && *intent.CheckoutRequestID == checkoutRequestID {
			return r.clone(intent), nil
		}
	}
	return nil, model.ErrIntentNotFound
}

func (r *fakeIntentRepo) SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return model.ErrIntentNotFound
	}
	intent.CheckoutRequestID = &checkoutRequestID
	return nil
}

func (r *fakeIntentRepo) MarkCompleted(ctx context.Context, id uuid.UUID, receipt string) (bool, error) {
	return r.transition(id, model.IntentStatusCompleted, receipt, "")
}

func (r *fakeIntentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return r.transition(id, model.IntentStatusFailed, "", reason)
}

func (r *fakeIntentRepo) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return r.transition(id, model.IntentStatusCancelled, "", reason)
}

func (r *fakeIntentRepo) transition(id uuid.UUID, status, receipt, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[id]
	if !ok {
		return false, model.ErrIntentNotFound
	}
	if intent.Status != model.IntentStatusPending {
		return false, nil
	}
	intent.Status = status
	if receipt != "" {
		rc := receipt
		intent.MpesaReceipt = &rc
	}
	if reason != "" {
		rs := reason
		intent.FailureReason = &rs
	}
	now := time.Now()
	intent.SettledAt = &now
	return true, nil
}

func (r *fakeIntentRepo) FindStalePending(ctx context.Context, minAge time.Duration, limit int) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-minAge)
	var stale []*model.PaymentIntent
	for _, intent := range r.intents {
		if intent.Status == model.IntentStatusPending &&
			intent.CheckoutRequestID != nil &&
			intent.CreatedAt.Before(cutoff) {
			stale = append(stale, r.clone(intent))
			if len(stale) >= limit {
				break
			}
		}
	}
	return stale, nil
}

func (r *fakeIntentRepo) ListByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.PaymentIntent, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var intents []*model.PaymentIntent
	for _, intent := range r.intents {
		if intent.UserID == userID {
			intents = append(intents, r.clone(intent))
		}
	}
	return intents, len(intents), nil
}

// backdate shifts an intent's creation time for stale-sweep tests.
func (r *fakeIntentRepo) backdate(id uuid.UUID, age time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if intent, ok := r.intents[id]; ok {
		intent.CreatedAt = time.Now().Add(-age)
	}
}

// =====================================================
// IN-MEMORY STATUS FEED
// =====================================================

type fakeFeed struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]chan realtime.StatusEvent
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[uuid.UUID][]chan realtime.StatusEvent)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, intentID uuid.UUID) (<-chan realtime.StatusEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan realtime.StatusEvent, 8)
	f.subs[intentID] = append(f.subs[intentID], ch)

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		channels := f.subs[intentID]
		for i, c := range channels {
			if c == ch {
				f.subs[intentID] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe, nil
}

func (f *fakeFeed) Publish(ctx context.Context, ev realtime.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[ev.IntentID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (f *fakeFeed) subscriberCount(intentID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[intentID])
}

// =====================================================
// IN-MEMORY REFERENCE RESOLVER
// =====================================================
// fakeResolver admits only references explicitly allowed for a user,
// reporting the recorded amount as the charge owed.

type fakeResolver struct {
	mu     sync.Mutex
	owners map[uuid.UUID]uuid.UUID
	owed   map[uuid.UUID]decimal.Decimal
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		owners: make(map[uuid.UUID]uuid.UUID),
		owed:   make(map[uuid.UUID]decimal.Decimal),
	}
}

// allow marks a reference as payable by the given user for the given amount.
func (r *fakeResolver) allow(referenceID, userID uuid.UUID, amount decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[referenceID] = userID
	r.owed[referenceID] = amount
}

func (r *fakeResolver) ResolveReference(ctx context.Context, userID, referenceID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[referenceID]
	if !ok || owner != userID {
		return decimal.Zero, model.NewInvalidReferenceError("reference " + referenceID.String() + " not found")
	}
	return r.owed[referenceID], nil
}

// =====================================================
// RECORDING SETTLEMENT HOOK
// =====================================================

type recordingHook struct {
	mu        sync.Mutex
	successes []uuid.UUID
	failures  []uuid.UUID
	reasons   []string
}

func (h *recordingHook) OnPaymentSuccess(ctx context.Context, intent *model.PaymentIntent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes = append(h.successes, intent.ID)
	return nil
}

func (h *recordingHook) OnPaymentFailure(ctx context.Context, intent *model.PaymentIntent, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, intent.ID)
	h.reasons = append(h.reasons, reason)
	return nil
}

func (h *recordingHook) successCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.successes)
}

func (h *recordingHook) failureCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failures)
}
