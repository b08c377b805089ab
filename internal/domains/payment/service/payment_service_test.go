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
)

type serviceFixture struct {
	repo     *fakeIntentRepo
	feed     *fakeFeed
	mpesa    *mock.MockMpesaGateway
	svc      PaymentService
	hook     *recordingHook
	resolver *fakeResolver
}

func newServiceFixture(t *testing.T, cfg config.PaymentConfig) *serviceFixture {
	t.Helper()

	repo := newFakeIntentRepo()
	feed := newFakeFeed()
	mpesa := mock.NewMockMpesaGateway()
	svc := NewPaymentService(repo, mpesa, feed, cfg)

	hook := &recordingHook{}
	svc.RegisterHook(model.IntentKindOrder, hook)

	resolver := newFakeResolver()
	svc.RegisterResolver(model.IntentKindOrder, resolver)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	return &serviceFixture{
		repo:     repo,
		feed:     feed,
		mpesa:    mpesa,
		svc:      svc,
		hook:     hook,
		resolver: resolver,
	}
}

func (f *serviceFixture) manager() *ReconcileManager {
	return f.svc.(*paymentService).manager
}

func validInitiateRequest() model.InitiatePaymentRequest {
	return model.InitiatePaymentRequest{
		Kind:        model.IntentKindOrder,
		ReferenceID: uuid.New(),
		Phone:       "0712345678",
		Amount:      decimal.NewFromInt(1500),
	}
}

// payableRequest builds an initiate request for a reference the user is
// allowed to pay, with the amount matching the charge owed.
func (f *serviceFixture) payableRequest(userID uuid.UUID) model.InitiatePaymentRequest {
	req := validInitiateRequest()
	f.resolver.allow(req.ReferenceID, userID, req.Amount)
	return req
}

// =====================================================
// INITIATE PAYMENT
// =====================================================

func TestInitiatePaymentInvalidPhone(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	req := validInitiateRequest()
	req.Phone = "12345"

	_, err := f.svc.InitiatePayment(context.Background(), uuid.New(), req)
	require.Error(t, err)
	require.Zero(t, f.mpesa.PushCalls(), "no push should leave the building for a bad phone")
}

func TestInitiatePaymentAmountBelowMinimum(t *testing.T) {
	t.Parallel()

	cfg := testPaymentConfig()
	cfg.MinAmount = 10
	f := newServiceFixture(t, cfg)

	req := validInitiateRequest()
	req.Amount = decimal.NewFromInt(5)

	_, err := f.svc.InitiatePayment(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, model.ErrAmountTooSmall)
	require.Zero(t, f.mpesa.PushCalls())
}

func TestInitiatePaymentUnknownReferenceRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	// A made-up reference the resolver has never heard of.
	userID := uuid.New()
	req := validInitiateRequest()
	req.Amount = decimal.NewFromInt(1)

	_, err := f.svc.InitiatePayment(context.Background(), userID, req)
	require.ErrorIs(t, err, model.ErrInvalidReference)
	require.Zero(t, f.mpesa.PushCalls(), "no push may go out for an unresolvable reference")

	intents, _, listErr := f.repo.ListByUserID(context.Background(), userID, 1, 10)
	require.NoError(t, listErr)
	require.Empty(t, intents, "no intent record for a refused initiation")
}

func TestInitiatePaymentForeignReferenceRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	// The reference is real but belongs to somebody else.
	owner := uuid.New()
	req := f.payableRequest(owner)

	_, err := f.svc.InitiatePayment(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, model.ErrInvalidReference)
	require.Zero(t, f.mpesa.PushCalls())
}

func TestInitiatePaymentAmountMismatchRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	// The user owes 1500 on this reference but asks to pay 1.
	userID := uuid.New()
	req := f.payableRequest(userID)
	req.Amount = decimal.NewFromInt(1)

	_, err := f.svc.InitiatePayment(context.Background(), userID, req)
	require.ErrorIs(t, err, model.ErrAmountMismatch)
	require.Zero(t, f.mpesa.PushCalls(), "a client-chosen amount must never reach the gateway")
}

func TestInitiatePaymentUnregisteredKindRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	// Only the order kind has a resolver in this fixture.
	req := validInitiateRequest()
	req.Kind = model.IntentKindWalletDeposit

	_, err := f.svc.InitiatePayment(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, model.ErrInvalidKind)
	require.Zero(t, f.mpesa.PushCalls())
}

func TestInitiatePaymentPushRejected(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())
	f.mpesa.SetFailPush(true, "Invalid PhoneNumber")

	userID := uuid.New()
	_, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.ErrorIs(t, err, model.ErrPushRejected)

	// The intent record is settled as failed so the owning flow sees it.
	intents, _, listErr := f.repo.ListByUserID(context.Background(), userID, 1, 10)
	require.NoError(t, listErr)
	require.Len(t, intents, 1)
	require.Equal(t, model.IntentStatusFailed, intents[0].Status)
	require.NotNil(t, intents[0].FailureReason)
	require.Contains(t, *intents[0].FailureReason, "push rejected")

	require.Equal(t, 1, f.hook.failureCount())
	require.False(t, f.manager().IsActive(intents[0].ID), "no reconciliation should start for a rejected push")
}

func TestInitiatePaymentStartsReconciliation(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	userID := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.NoError(t, err)
	require.NotEmpty(t, resp.CheckoutRequestID)
	require.Equal(t, model.IntentStatusPending, resp.Status)

	stored, err := f.repo.GetByID(context.Background(), resp.IntentID)
	require.NoError(t, err)
	require.NotNil(t, stored.CheckoutRequestID)
	require.Equal(t, resp.CheckoutRequestID, *stored.CheckoutRequestID)
	require.Equal(t, "254712345678", stored.Phone)

	require.True(t, f.manager().IsActive(resp.IntentID))
}

// =====================================================
// OWNERSHIP
// =====================================================

func TestGetIntentStatusForeignIntentReadsAsNotFound(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	owner := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), owner, f.payableRequest(owner))
	require.NoError(t, err)

	_, err = f.svc.GetIntentStatus(context.Background(), uuid.New(), resp.IntentID)
	require.ErrorIs(t, err, model.ErrIntentNotFound)
}

// =====================================================
// WEBHOOK
// =====================================================

func stkCallback(checkoutRequestID string, resultCode int, receipt string) model.StkCallbackRequest {
	var req model.StkCallbackRequest
	req.Body.StkCallback.CheckoutRequestID = checkoutRequestID
	req.Body.StkCallback.ResultCode = resultCode
	if receipt != "" {
		req.Body.StkCallback.CallbackMetadata.Item = []model.StkCallbackItem{
			{Name: "MpesaReceiptNumber", Value: receipt},
		}
	}
	return req
}

func TestHandleStkCallbackSuccess(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	userID := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleStkCallback(context.Background(), stkCallback(resp.CheckoutRequestID, 0, "NLJ7RT61SV")))

	intent, err := f.repo.GetByID(context.Background(), resp.IntentID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusCompleted, intent.Status)
	require.NotNil(t, intent.MpesaReceipt)
	require.Equal(t, "NLJ7RT61SV", *intent.MpesaReceipt)
	require.Equal(t, 1, f.hook.successCount())

	// The active run tears down once it sees the settled row.
	managerIdle := func() bool { return !f.manager().IsActive(resp.IntentID) }
	require.Eventually(t, managerIdle, time.Second, 5*time.Millisecond)
}

func TestHandleStkCallbackReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	userID := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.NoError(t, err)

	cb := stkCallback(resp.CheckoutRequestID, 0, "NLJ7RT61SV")
	require.NoError(t, f.svc.HandleStkCallback(context.Background(), cb))
	require.NoError(t, f.svc.HandleStkCallback(context.Background(), cb))
	require.NoError(t, f.svc.HandleStkCallback(context.Background(), cb))

	require.Equal(t, 1, f.hook.successCount(), "replayed callbacks must not re-run side effects")
}

func TestHandleStkCallbackFailure(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	userID := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.NoError(t, err)

	cb := stkCallback(resp.CheckoutRequestID, 1032, "")
	cb.Body.StkCallback.ResultDesc = "Request cancelled by user"
	require.NoError(t, f.svc.HandleStkCallback(context.Background(), cb))

	intent, err := f.repo.GetByID(context.Background(), resp.IntentID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusFailed, intent.Status)
	require.NotNil(t, intent.FailureReason)
	require.Equal(t, "Request cancelled by user", *intent.FailureReason)
	require.Equal(t, 1, f.hook.failureCount())
}

func TestHandleStkCallbackUnknownCheckout(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	err := f.svc.HandleStkCallback(context.Background(), stkCallback("ws_CO_unknown", 0, "X"))
	require.ErrorIs(t, err, model.ErrIntentNotFound)
}

// =====================================================
// CANCEL
// =====================================================

func TestCancelIntentAlreadySettled(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	userID := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleStkCallback(context.Background(), stkCallback(resp.CheckoutRequestID, 0, "RCT1")))

	_, err = f.svc.CancelIntent(context.Background(), userID, resp.IntentID)
	require.ErrorIs(t, err, model.ErrAlreadySettled)
}

func TestCancelIntentWithoutActiveRun(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	// A pending row with no in-process run, as after a restart.
	userID := uuid.New()
	intent := &model.PaymentIntent{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        model.IntentKindOrder,
		ReferenceID: uuid.New(),
		Phone:       "254712345678",
		Amount:      decimal.NewFromInt(1500),
		Currency:    model.DefaultCurrency,
		Status:      model.IntentStatusPending,
	}
	require.NoError(t, f.repo.Create(context.Background(), intent))

	status, err := f.svc.CancelIntent(context.Background(), userID, intent.ID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusCancelled, status.Status)

	stored, err := f.repo.GetByID(context.Background(), intent.ID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusCancelled, stored.Status)
}

func TestCancelIntentActiveRunReportsSettledRow(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())

	userID := uuid.New()
	resp, err := f.svc.InitiatePayment(context.Background(), userID, f.payableRequest(userID))
	require.NoError(t, err)
	require.True(t, f.manager().IsActive(resp.IntentID))

	status, err := f.svc.CancelIntent(context.Background(), userID, resp.IntentID)
	require.NoError(t, err)

	// The response must reflect the row as it actually settled, not a
	// synthesized cancelled shape issued before the run caught up.
	stored, err := f.repo.GetByID(context.Background(), resp.IntentID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusCancelled, stored.Status)
	require.Equal(t, stored.Status, status.Status)
	require.Equal(t, 1, f.hook.failureCount())
}

// =====================================================
// STALE SWEEP
// =====================================================

func TestSweepStaleIntentsSettlesLostCallback(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())
	f.mpesa.ScriptQueryResponses(
		&gateway.StkQueryResponse{ResultCode: "0", ResultDesc: "Processed successfully", Receipt: "RCT_SWEEP"},
	)

	checkoutID := "ws_CO_stale"
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
	f.repo.backdate(intent.ID, time.Hour)

	settled, err := f.svc.SweepStaleIntents(context.Background(), 30*time.Minute, 50)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	stored, err := f.repo.GetByID(context.Background(), intent.ID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusCompleted, stored.Status)
	require.NotNil(t, stored.MpesaReceipt)
	require.Equal(t, "RCT_SWEEP", *stored.MpesaReceipt)
	require.Equal(t, 1, f.hook.successCount())
}

func TestSweepStaleIntentsLeavesFreshAndPendingAlone(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, testPaymentConfig())
	// No script: every query reports pending.

	checkoutID := "ws_CO_still_pending"
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
	f.repo.backdate(intent.ID, time.Hour)

	settled, err := f.svc.SweepStaleIntents(context.Background(), 30*time.Minute, 50)
	require.NoError(t, err)
	require.Zero(t, settled)

	stored, err := f.repo.GetByID(context.Background(), intent.ID)
	require.NoError(t, err)
	require.Equal(t, model.IntentStatusPending, stored.Status)
	require.Zero(t, f.hook.successCount())
}
