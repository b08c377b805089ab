package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sokoni-backend/internal/config"
	"sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/gateway/mock"
	"sokoni-backend/internal/domains/payment/model"
	"sokoni-backend/internal/infrastructure/realtime"
)

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		PollInterval:  5 * time.Millisecond,
		GatewayStride: 2,
		MaxAttempts:   40,
		MinAmount:     1,
	}
}

type reconcilerFixture struct {
	repo    *fakeIntentRepo
	feed    *fakeFeed
	mpesa   *mock.MockMpesaGateway
	settler *Settler
	manager *ReconcileManager
	hook    *recordingHook
}

func newReconcilerFixture(t *testing.T, cfg config.PaymentConfig) *reconcilerFixture {
	t.Helper()

	repo := newFakeIntentRepo()
	feed := newFakeFeed()
	mpesa := mock.NewMockMpesaGateway()
	settler := NewSettler(repo, feed)
	hook := &recordingHook{}
	settler.RegisterHook(model.IntentKindOrder, hook)
	manager := NewReconcileManager(repo, mpesa, feed, settler, cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	return &reconcilerFixture{
		repo:    repo,
		feed:    feed,
		mpesa:   mpesa,
		settler: settler,
		manager: manager,
		hook:    hook,
	}
}

func (f *reconcilerFixture) newPendingIntent(t *testing.T) *model.PaymentIntent {
	t.Helper()

	checkoutID := "ws_CO_" + uuid.NewString()
	intent := &model.PaymentIntent{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Kind:        model.IntentKindOrder,
		ReferenceID: uuid.New(),
		Phone:       "254712345678",
		Amount:      decimal.NewFromInt(1500),
		Currency:    model.DefaultCurrency,
		Status:      model.IntentStatusPending,
	}
	require.NoError(t, f.repo.Create(context.Background(), intent))
	require.NoError(t, f.repo.SetCheckoutRequestID(context.Background(), intent.ID, checkoutID))
	intent.CheckoutRequestID = &checkoutID
	return intent
}

func (f *reconcilerFixture) status(t *testing.T, id uuid.UUID) *model.PaymentIntent {
	t.Helper()
	intent, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return intent
}

// statusOf is safe inside Eventually closures.
func (f *reconcilerFixture) statusOf(id uuid.UUID) string {
	intent, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		return ""
	}
	return intent.Status
}

// =====================================================
// CHANNEL TESTS
// =====================================================

func TestReconcilerRealtimeEventSettles(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	require.Eventually(t, func() bool {
		return f.feed.subscriberCount(intent.ID) == 1
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, f.feed.Publish(context.Background(), realtime.StatusEvent{
		IntentID: intent.ID,
		Status:   "paid",
		Receipt:  "RCT123",
	}))

	require.Eventually(t, func() bool {
		return f.statusOf(intent.ID) == model.IntentStatusCompleted
	}, time.Second, 2*time.Millisecond)

	settled := f.status(t, intent.ID)
	require.NotNil(t, settled.MpesaReceipt)
	require.Equal(t, "RCT123", *settled.MpesaReceipt)
	require.Equal(t, 1, f.hook.successCount())

	// Teardown: subscription released, run removed.
	require.Eventually(t, func() bool {
		return f.feed.subscriberCount(intent.ID) == 0 && !f.manager.IsActive(intent.ID)
	}, time.Second, 2*time.Millisecond)
}

func TestReconcilerPollDetectsExternalSettlement(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	// Another instance settles the row directly; no feed event reaches
	// this run, only the poll can notice.
	applied, err := f.repo.MarkCompleted(context.Background(), intent.ID, "RCT999")
	require.NoError(t, err)
	require.True(t, applied)

	require.Eventually(t, func() bool {
		return !f.manager.IsActive(intent.ID)
	}, time.Second, 2*time.Millisecond)

	// The other writer won the transition, so this run must not fire
	// side effects a second time.
	require.Equal(t, 0, f.hook.successCount())
	require.Equal(t, model.IntentStatusCompleted, f.status(t, intent.ID).Status)
}

func TestReconcilerGatewayQueryRescuesLostCallback(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	f.mpesa.ScriptQueryResponses(
		&gateway.StkQueryResponse{Pending: true},
		&gateway.StkQueryResponse{Pending: true},
		&gateway.StkQueryResponse{ResultCode: "0", ResultDesc: "Success", Receipt: "RCT777"},
	)

	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	require.Eventually(t, func() bool {
		return f.statusOf(intent.ID) == model.IntentStatusCompleted
	}, 2*time.Second, 2*time.Millisecond)

	// The gateway answer is written back to the record.
	settled := f.status(t, intent.ID)
	require.NotNil(t, settled.MpesaReceipt)
	require.Equal(t, "RCT777", *settled.MpesaReceipt)
	require.Equal(t, 1, f.hook.successCount())
	require.GreaterOrEqual(t, f.mpesa.QueryCalls(), 3)
}

func TestReconcilerGatewayReportsExplicitFailure(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	f.mpesa.ScriptQueryResponses(
		&gateway.StkQueryResponse{ResultCode: "1032", ResultDesc: "Request cancelled by user"},
	)

	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	require.Eventually(t, func() bool {
		return f.statusOf(intent.ID) == model.IntentStatusFailed
	}, time.Second, 2*time.Millisecond)

	settled := f.status(t, intent.ID)
	require.NotNil(t, settled.FailureReason)
	require.Equal(t, "Request cancelled by user", *settled.FailureReason)
	require.Equal(t, 1, f.hook.failureCount())
	require.Equal(t, 0, f.hook.successCount())
}

// =====================================================
// TIMEOUT AND MANUAL ACTIONS
// =====================================================

func TestReconcilerTimeoutLeavesRecordPending(t *testing.T) {
	t.Parallel()

	cfg := testPaymentConfig()
	cfg.MaxAttempts = 5

	f := newReconcilerFixture(t, cfg)
	// No script: every gateway query answers "still processing".
	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	require.Eventually(t, func() bool {
		return !f.manager.IsActive(intent.ID)
	}, time.Second, 2*time.Millisecond)

	// Indeterminate: nothing was written, nothing fired.
	require.Equal(t, model.IntentStatusPending, f.status(t, intent.ID).Status)
	require.Equal(t, 0, f.hook.successCount())
	require.Equal(t, 0, f.hook.failureCount())
	require.Equal(t, 0, f.feed.subscriberCount(intent.ID))
}

func TestReconcilerCancelSettlesCancelled(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	require.Eventually(t, func() bool {
		return f.manager.IsActive(intent.ID)
	}, time.Second, 2*time.Millisecond)

	done, err := f.manager.Cancel(intent.ID, "cancelled by user")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciliation did not finish after cancel")
	}

	// The done channel closes only after the run has settled the row.
	require.Equal(t, model.IntentStatusCancelled, f.statusOf(intent.ID))
	require.Equal(t, 1, f.hook.failureCount())
	require.False(t, f.manager.IsActive(intent.ID))
}

func TestReconcilerCheckNowForcesImmediateProbe(t *testing.T) {
	t.Parallel()

	cfg := testPaymentConfig()
	// Ticker effectively never fires; only the nudge can settle.
	cfg.PollInterval = time.Minute

	f := newReconcilerFixture(t, cfg)
	f.mpesa.ScriptQueryResponses(
		&gateway.StkQueryResponse{ResultCode: "0", ResultDesc: "Success", Receipt: "RCT555"},
	)

	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	require.Eventually(t, func() bool {
		return f.manager.IsActive(intent.ID)
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, f.manager.CheckNow(intent.ID))

	require.Eventually(t, func() bool {
		return f.statusOf(intent.ID) == model.IntentStatusCompleted
	}, time.Second, 2*time.Millisecond)
	require.Equal(t, 1, f.hook.successCount())
}

func TestReconcilerCheckNowUnknownIntent(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	err := f.manager.CheckNow(uuid.New())
	require.ErrorIs(t, err, model.ErrNotReconciling)
}

// =====================================================
// RACE SAFETY
// =====================================================

func TestReconcilerSimultaneousSignalsSettleOnce(t *testing.T) {
	t.Parallel()

	f := newReconcilerFixture(t, testPaymentConfig())
	f.mpesa.ScriptQueryResponses(
		&gateway.StkQueryResponse{ResultCode: "0", ResultDesc: "Success", Receipt: "RCT-GW"},
	)

	intent := f.newPendingIntent(t)
	f.manager.Start(intent)

	// A webhook lands while the gateway channel is racing toward the
	// same conclusion.
	go func() {
		_, _, _ = f.settler.Settle(context.Background(), intent.ID, model.Outcome{
			State:   model.OutcomeSuccess,
			Receipt: "RCT-WH",
			Source:  model.SourceWebhook,
		})
	}()

	require.Eventually(t, func() bool {
		return f.statusOf(intent.ID) == model.IntentStatusCompleted && !f.manager.IsActive(intent.ID)
	}, time.Second, 2*time.Millisecond)

	// Exactly one winner, exactly one side-effect dispatch.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, f.hook.successCount())
	require.Equal(t, 0, f.hook.failureCount())
}

// =====================================================
// OUTCOME MAPPING
// =====================================================

func TestOutcomeFromToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		token         string
		wantTerminal  bool
		wantState     string
	}{
		{name: "paid is success", token: "paid", wantTerminal: true, wantState: model.OutcomeSuccess},
		{name: "completed is success", token: "completed", wantTerminal: true, wantState: model.OutcomeSuccess},
		{name: "active is success", token: "active", wantTerminal: true, wantState: model.OutcomeSuccess},
		{name: "success is success", token: "success", wantTerminal: true, wantState: model.OutcomeSuccess},
		{name: "zero code is success", token: "0", wantTerminal: true, wantState: model.OutcomeSuccess},
		{name: "failed is failure", token: "failed", wantTerminal: true, wantState: model.OutcomeFailed},
		{name: "cancelled maps to cancelled", token: "cancelled", wantTerminal: true, wantState: model.OutcomeCancelled},
		{name: "pending is not terminal", token: "pending", wantTerminal: false},
		{name: "empty is not terminal", token: "", wantTerminal: false},
		{name: "processing is not terminal", token: "processing", wantTerminal: false},
		{name: "unknown token is not terminal", token: "weird_status", wantTerminal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outcome, terminal := outcomeFromToken(tt.token, "", "", model.SourceRealtime)
			require.Equal(t, tt.wantTerminal, terminal)
			if tt.wantTerminal {
				require.Equal(t, tt.wantState, outcome.State)
			}
		})
	}
}
