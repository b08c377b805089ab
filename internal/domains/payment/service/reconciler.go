package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sokoni-backend/internal/config"
	"sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/model"
	repo "sokoni-backend/internal/domains/payment/repository"
	"sokoni-backend/internal/infrastructure/realtime"
	"sokoni-backend/pkg/logger"
)

// =====================================================
// CONFIRMATION RECONCILER
// =====================================================
// After an STK push is accepted the payer may approve, reject, or
// ignore the prompt, and the provider's confirmation can arrive through
// several paths with different latencies. The reconciler watches three
// of them at once for every in-flight intent:
//
//   1. realtime - settlement events published on the status feed
//   2. poll     - the intent row itself, re-read on an interval
//   3. gateway  - an active status query, every Nth poll tick
//
// The first terminal signal wins. All paths funnel into the Settler,
// whose conditional update makes the race safe: side effects fire
// exactly once no matter how many channels report.

type ReconcileManager struct {
	intentRepo repo.IntentRepoInterface
	mpesa      gateway.MpesaGateway
	feed       realtime.Feed
	settler    *Settler
	cfg        config.PaymentConfig

	mu     sync.Mutex
	active map[uuid.UUID]*run
	wg     sync.WaitGroup
	closed bool
}

type run struct {
	cancel     context.CancelFunc
	nudge      chan struct{}
	userCancel chan string
	done       chan struct{}
}

func NewReconcileManager(
	intentRepo repo.IntentRepoInterface,
	mpesa gateway.MpesaGateway,
	feed realtime.Feed,
	settler *Settler,
	cfg config.PaymentConfig,
) *ReconcileManager {
	return &ReconcileManager{
		intentRepo: intentRepo,
		mpesa:      mpesa,
		feed:       feed,
		settler:    settler,
		cfg:        cfg,
		active:     make(map[uuid.UUID]*run),
	}
}

// Start begins reconciliation for a freshly pushed intent. No-op if a
// run is already active for the intent or the manager is shut down.
func (m *ReconcileManager) Start(intent *model.PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if _, exists := m.active[intent.ID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel:     cancel,
		nudge:      make(chan struct{}, 1),
		userCancel: make(chan string, 1),
		done:       make(chan struct{}),
	}
	m.active[intent.ID] = r

	m.wg.Add(1)
	go m.reconcile(ctx, intent, r)
}

// CheckNow forces an immediate gateway query on an active run.
func (m *ReconcileManager) CheckNow(intentID uuid.UUID) error {
	m.mu.Lock()
	r, exists := m.active[intentID]
	m.mu.Unlock()

	if !exists {
		return model.ErrNotReconciling
	}

	select {
	case r.nudge <- struct{}{}:
	default:
		// a nudge is already queued
	}
	return nil
}

// Cancel asks an active run to settle the intent as cancelled. The
// returned channel closes once the run has finished settling, whatever
// the winning outcome was; callers that need the final status wait on
// it and re-read the row.
func (m *ReconcileManager) Cancel(intentID uuid.UUID, reason string) (<-chan struct{}, error) {
	m.mu.Lock()
	r, exists := m.active[intentID]
	m.mu.Unlock()

	if !exists {
		return nil, model.ErrNotReconciling
	}

	select {
	case r.userCancel <- reason:
	default:
	}
	return r.done, nil
}

// IsActive reports whether an intent is currently being reconciled.
func (m *ReconcileManager) IsActive(intentID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.active[intentID]
	return exists
}

// ActiveCount returns the number of in-flight reconciliations.
func (m *ReconcileManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown cancels all runs and waits for them to tear down. Pending
// intents stay pending; the sweep job picks them up after restart.
func (m *ReconcileManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, r := range m.active {
		r.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ReconcileManager) remove(intentID uuid.UUID) {
	m.mu.Lock()
	delete(m.active, intentID)
	m.mu.Unlock()
}

// =====================================================
// RUN LOOP
// =====================================================

func (m *ReconcileManager) reconcile(ctx context.Context, intent *model.PaymentIntent, r *run) {
	defer m.wg.Done()
	defer close(r.done)
	defer m.remove(intent.ID)
	defer r.cancel()

	// Channel 1: realtime feed. Losing the subscription is survivable,
	// the poll channel covers the same ground more slowly.
	events, unsubscribe, err := m.feed.Subscribe(ctx, intent.ID)
	if err != nil {
		logger.Warn("realtime subscribe failed, relying on poll and gateway", map[string]interface{}{
			"intent_id": intent.ID.String(),
			"error":     err.Error(),
		})
		events = nil
	} else {
		defer unsubscribe()
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return

		case reason := <-r.userCancel:
			if reason == "" {
				reason = "cancelled by user"
			}
			m.finish(intent.ID, model.Outcome{
				State:  model.OutcomeCancelled,
				Reason: reason,
				Source: model.SourceManual,
			})
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if outcome, terminal := outcomeFromToken(ev.Status, ev.Receipt, ev.Reason, model.SourceRealtime); terminal {
				m.finish(intent.ID, outcome)
				return
			}

		case <-r.nudge:
			if outcome, terminal := m.probeGateway(ctx, intent, model.SourceManual); terminal {
				m.finish(intent.ID, outcome)
				return
			}
			if outcome, terminal := m.pollOnce(ctx, intent.ID); terminal {
				m.finish(intent.ID, outcome)
				return
			}

		case <-ticker.C:
			attempts++

			// Channel 2: poll the row. A webhook or another instance may
			// have settled it behind our back.
			if outcome, terminal := m.pollOnce(ctx, intent.ID); terminal {
				m.finish(intent.ID, outcome)
				return
			}

			// Channel 3: ask the provider directly, at a slower cadence.
			if m.cfg.GatewayStride > 0 && attempts%m.cfg.GatewayStride == 0 {
				if outcome, terminal := m.probeGateway(ctx, intent, model.SourceGateway); terminal {
					m.finish(intent.ID, outcome)
					return
				}
			}

			if attempts >= m.cfg.MaxAttempts {
				// Indeterminate: stop watching but leave the row pending.
				// The sweep job and manual check-now remain available.
				logger.Warn("reconciliation timed out, intent left pending", map[string]interface{}{
					"intent_id": intent.ID.String(),
					"attempts":  attempts,
				})
				return
			}
		}
	}
}

// finish settles with a fresh context: the run context may already be
// cancelled by the time a terminal signal lands.
func (m *ReconcileManager) finish(intentID uuid.UUID, outcome model.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, _, err := m.settler.Settle(ctx, intentID, outcome); err != nil {
		logger.Error("failed to settle intent "+intentID.String(), err)
	}
}

// pollOnce re-reads the intent row and reports a terminal outcome if
// some other path already settled it.
func (m *ReconcileManager) pollOnce(ctx context.Context, intentID uuid.UUID) (model.Outcome, bool) {
	current, err := m.intentRepo.GetByID(ctx, intentID)
	if err != nil {
		logger.Warn("poll read failed", map[string]interface{}{
			"intent_id": intentID.String(),
			"error":     err.Error(),
		})
		return model.Outcome{}, false
	}
	if !current.IsTerminal() {
		return model.Outcome{}, false
	}
	return outcomeFromIntent(current, model.SourcePoll), true
}

// probeGateway runs one active status query.
func (m *ReconcileManager) probeGateway(ctx context.Context, intent *model.PaymentIntent, source string) (model.Outcome, bool) {
	if !intent.CanQueryGateway() {
		// The correlation ID lands on the row after the push ack; pick
		// it up on a later tick if we started without it.
		current, err := m.intentRepo.GetByID(ctx, intent.ID)
		if err != nil || !current.CanQueryGateway() {
			return model.Outcome{}, false
		}
		intent.CheckoutRequestID = current.CheckoutRequestID
	}

	outcome, terminal, err := queryGatewayOutcome(ctx, m.mpesa, intent, source)
	if err != nil {
		logger.Warn("gateway status query failed", map[string]interface{}{
			"intent_id": intent.ID.String(),
			"error":     err.Error(),
		})
		return model.Outcome{}, false
	}
	return outcome, terminal
}

// =====================================================
// OUTCOME MAPPING
// =====================================================

// outcomeFromToken maps a raw status token from a channel onto a
// terminal outcome. Unknown tokens are non-terminal: keep waiting.
func outcomeFromToken(token, receipt, reason, source string) (model.Outcome, bool) {
	switch {
	case model.IsTerminalSuccessToken(token):
		return model.Outcome{
			State:   model.OutcomeSuccess,
			Receipt: receipt,
			Source:  source,
		}, true
	case token == model.IntentStatusCancelled:
		if reason == "" {
			reason = "cancelled"
		}
		return model.Outcome{
			State:  model.OutcomeCancelled,
			Reason: reason,
			Source: source,
		}, true
	case model.IsTerminalFailureToken(token):
		if reason == "" {
			reason = token
		}
		return model.Outcome{
			State:  model.OutcomeFailed,
			Reason: reason,
			Source: source,
		}, true
	}
	return model.Outcome{}, false
}

// outcomeFromIntent maps an already-terminal row onto an outcome.
func outcomeFromIntent(intent *model.PaymentIntent, source string) model.Outcome {
	outcome := model.Outcome{Source: source}
	switch intent.Status {
	case model.IntentStatusCompleted:
		outcome.State = model.OutcomeSuccess
		if intent.MpesaReceipt != nil {
			outcome.Receipt = *intent.MpesaReceipt
		}
	case model.IntentStatusCancelled:
		outcome.State = model.OutcomeCancelled
		if intent.FailureReason != nil {
			outcome.Reason = *intent.FailureReason
		}
	default:
		outcome.State = model.OutcomeFailed
		if intent.FailureReason != nil {
			outcome.Reason = *intent.FailureReason
		}
	}
	return outcome
}

// queryGatewayOutcome asks the provider for the current state of a push
// and maps the answer. A response carrying an errorCode means "still
// processing" and is never treated as failure. Shared by the reconciler,
// the sweep job and the manual fallback path.
func queryGatewayOutcome(
	ctx context.Context,
	mpesa gateway.MpesaGateway,
	intent *model.PaymentIntent,
	source string,
) (model.Outcome, bool, error) {
	if !intent.CanQueryGateway() {
		return model.Outcome{}, false, nil
	}

	resp, err := mpesa.QueryStatus(ctx, *intent.CheckoutRequestID)
	if err != nil {
		return model.Outcome{}, false, err
	}

	if resp.Pending {
		return model.Outcome{}, false, nil
	}

	switch {
	case resp.ResultCode == "0":
		return model.Outcome{
			State:   model.OutcomeSuccess,
			Receipt: resp.Receipt,
			Source:  source,
		}, true, nil
	case model.IsMpesaFailureCode(resp.ResultCode):
		reason := resp.ResultDesc
		if reason == "" {
			reason = model.MpesaResultMessage(resp.ResultCode)
		}
		return model.Outcome{
			State:  model.OutcomeFailed,
			Reason: reason,
			Source: source,
		}, true, nil
	}

	// Unknown code: do not settle on it.
	logger.Warn("unrecognized gateway result code", map[string]interface{}{
		"intent_id":   intent.ID.String(),
		"result_code": resp.ResultCode,
	})
	return model.Outcome{}, false, nil
}
