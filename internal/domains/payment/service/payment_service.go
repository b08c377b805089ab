package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sokoni-backend/internal/config"
	"sokoni-backend/internal/domains/payment/gateway"
	"sokoni-backend/internal/domains/payment/model"
	repo "sokoni-backend/internal/domains/payment/repository"
	"sokoni-backend/internal/infrastructure/realtime"
	"sokoni-backend/pkg/logger"
)

// =====================================================
// PAYMENT SERVICE IMPLEMENTATION
// =====================================================
type paymentService struct {
	intentRepo repo.IntentRepoInterface
	mpesa      gateway.MpesaGateway
	settler    *Settler
	manager    *ReconcileManager
	cfg        config.PaymentConfig

	mu        sync.RWMutex
	resolvers map[string]ReferenceResolver
}

func NewPaymentService(
	intentRepo repo.IntentRepoInterface,
	mpesa gateway.MpesaGateway,
	feed realtime.Feed,
	cfg config.PaymentConfig,
) PaymentService {
	settler := NewSettler(intentRepo, feed)
	manager := NewReconcileManager(intentRepo, mpesa, feed, settler, cfg)

	return &paymentService{
		intentRepo: intentRepo,
		mpesa:      mpesa,
		settler:    settler,
		manager:    manager,
		cfg:        cfg,
		resolvers:  make(map[string]ReferenceResolver),
	}
}

// RegisterHook wires settlement side effects for one intent kind
func (s *paymentService) RegisterHook(kind string, hook SettlementHook) {
	s.settler.RegisterHook(kind, hook)
}

// RegisterResolver wires the reference check for one intent kind
func (s *paymentService) RegisterResolver(kind string, resolver ReferenceResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers[kind] = resolver
}

func (s *paymentService) resolverFor(kind string) ReferenceResolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolvers[kind]
}

// =====================================================
// INITIATE PAYMENT
// =====================================================

// InitiatePayment starts an STK push payment
//
// Business Logic Flow:
// 1. Validate request and normalize the phone number
// 2. Check the amount against the minimum
// 3. Resolve the reference: it must exist, belong to the caller, still
//    be awaiting payment, and the amount must match what the server
//    says is owed
// 4. Create a pending payment_intents record
// 5. Send the STK push through the gateway proxy
// 6. On rejection: settle the intent as failed, return PAY004
// 7. On acceptance: store the CheckoutRequestID and start reconciliation
func (s *paymentService) InitiatePayment(
	ctx context.Context,
	userID uuid.UUID,
	req model.InitiatePaymentRequest,
) (*model.InitiatePaymentResponse, error) {
	// Step 1: Validate
	if err := req.Validate(); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeInvalidKind, "Invalid request", err)
	}

	phone, err := model.NormalizePhone(req.Phone)
	if err != nil {
		return nil, model.NewInvalidPhoneError(req.Phone)
	}

	// Step 2: Amount check. M-Pesa charges whole shillings.
	if req.Amount.LessThan(decimal.NewFromInt(s.cfg.MinAmount)) {
		return nil, model.NewAmountTooSmallError(s.cfg.MinAmount)
	}

	// Step 3: Resolve the reference. The client names what it pays for;
	// the owning domain decides whether it is payable and how much is
	// owed. A client-chosen amount never reaches the gateway.
	resolver := s.resolverFor(req.Kind)
	if resolver == nil {
		return nil, model.NewPaymentError(model.ErrCodeInvalidKind, "No payment flow registered for kind "+req.Kind, model.ErrInvalidKind)
	}
	owed, err := resolver.ResolveReference(ctx, userID, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if !req.Amount.Equal(owed) {
		return nil, model.NewAmountMismatchError(owed.String(), req.Amount.String())
	}

	// Step 4: Create the pending intent
	intent := &model.PaymentIntent{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        req.Kind,
		ReferenceID: req.ReferenceID,
		Phone:       phone,
		Amount:      req.Amount,
		Currency:    model.DefaultCurrency,
		Status:      model.IntentStatusPending,
	}

	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return nil, err
	}

	// Step 5: Send the push
	pushReq := gateway.StkPushRequest{
		Amount:      req.Amount,
		Phone:       phone,
		AccountRef:  intent.ID.String(),
		Description: req.Description,
	}
	switch req.Kind {
	case model.IntentKindOrder:
		pushReq.OrderID = req.ReferenceID.String()
	case model.IntentKindWalletDeposit:
		pushReq.WalletTransactionID = req.ReferenceID.String()
	}

	pushResp, err := s.mpesa.STKPush(ctx, pushReq)
	if err != nil {
		// Step 6: A rejected push never reaches the payer's device.
		// Settle immediately so the owning flow can react.
		outcome := model.Outcome{
			State:  model.OutcomeFailed,
			Reason: "push rejected: " + err.Error(),
			Source: model.SourceGateway,
		}
		if _, _, settleErr := s.settler.Settle(ctx, intent.ID, outcome); settleErr != nil {
			logger.Error("failed to record push rejection for intent "+intent.ID.String(), settleErr)
		}
		return nil, err
	}

	// Step 7: Correlate and start watching
	if err := s.intentRepo.SetCheckoutRequestID(ctx, intent.ID, pushResp.CheckoutRequestID); err != nil {
		return nil, err
	}
	intent.CheckoutRequestID = &pushResp.CheckoutRequestID

	s.manager.Start(intent)

	logger.Info("stk push initiated", map[string]interface{}{
		"intent_id":           intent.ID.String(),
		"kind":                intent.Kind,
		"checkout_request_id": pushResp.CheckoutRequestID,
	})

	return &model.InitiatePaymentResponse{
		IntentID:          intent.ID,
		CheckoutRequestID: pushResp.CheckoutRequestID,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		Status:            intent.Status,
		CustomerMessage:   pushResp.CustomerMessage,
	}, nil
}

// =====================================================
// STATUS & LISTING
// =====================================================

func (s *paymentService) GetIntentStatus(ctx context.Context, userID, intentID uuid.UUID) (*model.IntentStatusResponse, error) {
	intent, err := s.getOwnedIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	return model.NewIntentStatusResponse(intent), nil
}

func (s *paymentService) ListIntents(ctx context.Context, userID uuid.UUID, page, limit int) ([]*model.IntentStatusResponse, int, error) {
	intents, total, err := s.intentRepo.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*model.IntentStatusResponse, 0, len(intents))
	for _, intent := range intents {
		responses = append(responses, model.NewIntentStatusResponse(intent))
	}
	return responses, total, nil
}

// getOwnedIntent loads an intent and verifies ownership. A foreign
// intent reads as not found.
func (s *paymentService) getOwnedIntent(ctx context.Context, userID, intentID uuid.UUID) (*model.PaymentIntent, error) {
	intent, err := s.intentRepo.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		return nil, model.NewIntentNotFoundError(intentID.String())
	}
	return intent, nil
}

// =====================================================
// MANUAL ACTIONS
// =====================================================

// CheckIntentNow forces an immediate gateway probe. While reconciliation
// is active this nudges the run; after it has given up (or the process
// restarted) the probe runs inline and settles directly.
func (s *paymentService) CheckIntentNow(ctx context.Context, userID, intentID uuid.UUID) (*model.IntentStatusResponse, error) {
	intent, err := s.getOwnedIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}

	if intent.IsTerminal() {
		return model.NewIntentStatusResponse(intent), nil
	}

	if err := s.manager.CheckNow(intentID); err == nil {
		// Give the run a moment to act on the nudge, then report
		// whatever the row says.
		select {
		case <-time.After(s.cfg.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		intent, err = s.intentRepo.GetByID(ctx, intentID)
		if err != nil {
			return nil, err
		}
		return model.NewIntentStatusResponse(intent), nil
	}

	// No active run: one-shot probe.
	outcome, terminal, err := queryGatewayOutcome(ctx, s.mpesa, intent, model.SourceManual)
	if err != nil {
		return nil, model.NewPaymentError(model.ErrCodeGatewayUnavailable, "Status query failed", err)
	}
	if !terminal {
		return model.NewIntentStatusResponse(intent), nil
	}

	settled, _, err := s.settler.Settle(ctx, intentID, outcome)
	if err != nil {
		return nil, err
	}
	return model.NewIntentStatusResponse(settled), nil
}

// CancelIntent abandons a pending payment
func (s *paymentService) CancelIntent(ctx context.Context, userID, intentID uuid.UUID) (*model.IntentStatusResponse, error) {
	intent, err := s.getOwnedIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}

	if intent.IsTerminal() {
		return nil, model.NewPaymentError(model.ErrCodeAlreadySettled, "Payment already settled", model.ErrAlreadySettled)
	}

	const reason = "cancelled by user"

	// Ask any active run to settle the cancel, and wait for it to finish
	// before answering. The cancel can lose to a success arriving in the
	// same instant, so the response must come from the row, not from a
	// synthesized cancelled shape.
	if done, err := s.manager.Cancel(intentID, reason); err == nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Conditional settle: a no-op when the run (or anyone else) already
	// landed a terminal status, and the honest cancel when it did not.
	settled, _, err := s.settler.Settle(ctx, intentID, model.Outcome{
		State:  model.OutcomeCancelled,
		Reason: reason,
		Source: model.SourceManual,
	})
	if err != nil {
		return nil, err
	}
	return model.NewIntentStatusResponse(settled), nil
}

// =====================================================
// WEBHOOK
// =====================================================

// HandleStkCallback processes the provider's asynchronous confirmation.
// Settlement is idempotent, so a replayed callback or one racing the
// reconciler is harmless.
func (s *paymentService) HandleStkCallback(ctx context.Context, req model.StkCallbackRequest) error {
	cb := req.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return model.NewPaymentError(model.ErrCodeIntentNotFound, "Callback missing CheckoutRequestID", model.ErrIntentNotFound)
	}

	intent, err := s.intentRepo.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return err
	}

	var outcome model.Outcome
	if cb.ResultCode == 0 {
		outcome = model.Outcome{
			State:   model.OutcomeSuccess,
			Receipt: req.Receipt(),
			Source:  model.SourceWebhook,
		}
	} else {
		reason := cb.ResultDesc
		if reason == "" {
			reason = model.MpesaResultMessage(strconv.Itoa(cb.ResultCode))
		}
		outcome = model.Outcome{
			State:  model.OutcomeFailed,
			Reason: reason,
			Source: model.SourceWebhook,
		}
	}

	_, applied, err := s.settler.Settle(ctx, intent.ID, outcome)
	if err != nil {
		return err
	}

	if !applied {
		logger.Debug("callback for already settled intent " + intent.ID.String())
	}
	return nil
}

// =====================================================
// STALE INTENT SWEEP
// =====================================================

// SweepStaleIntents rescues intents whose callback never arrived and
// whose reconciliation has given up. Each stale row gets one gateway
// query; terminal answers settle, everything else stays pending.
func (s *paymentService) SweepStaleIntents(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	stale, err := s.intentRepo.FindStalePending(ctx, minAge, limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, intent := range stale {
		if s.manager.IsActive(intent.ID) {
			continue
		}

		outcome, terminal, err := queryGatewayOutcome(ctx, s.mpesa, intent, model.SourceSweep)
		if err != nil {
			logger.Warn("sweep query failed", map[string]interface{}{
				"intent_id": intent.ID.String(),
				"error":     err.Error(),
			})
			continue
		}
		if !terminal {
			continue
		}

		if _, applied, err := s.settler.Settle(ctx, intent.ID, outcome); err != nil {
			logger.Error("sweep settle failed for intent "+intent.ID.String(), err)
		} else if applied {
			settled++
		}
	}

	if len(stale) > 0 {
		logger.Info("stale intent sweep finished", map[string]interface{}{
			"scanned": len(stale),
			"settled": settled,
		})
	}
	return settled, nil
}

// Shutdown stops all active reconciliations
func (s *paymentService) Shutdown(ctx context.Context) error {
	return s.manager.Shutdown(ctx)
}
