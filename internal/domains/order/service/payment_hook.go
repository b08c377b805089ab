package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"sokoni-backend/internal/domains/order/model"
	repo "sokoni-backend/internal/domains/order/repository"
	paymentModel "sokoni-backend/internal/domains/payment/model"
	"sokoni-backend/internal/shared"
	"sokoni-backend/pkg/logger"
)

// =====================================================
// PAYMENT SETTLEMENT HOOK
// =====================================================
// PaymentHook receives settlement results for order-kind intents. The
// settler dispatches each intent at most once, so confirming the order
// and enqueuing the follow-up job here is safe against channel races.

type PaymentHook struct {
	orderRepo repo.OrderRepoInterface
	asynq     *asynq.Client
}

func NewPaymentHook(orderRepo repo.OrderRepoInterface, asynqClient *asynq.Client) *PaymentHook {
	return &PaymentHook{
		orderRepo: orderRepo,
		asynq:     asynqClient,
	}
}

// ResolveReference admits an order into the payment flow. The order
// must exist, belong to the paying user and still be awaiting payment;
// the amount owed is the server-computed order total, never whatever
// the client sent.
func (h *PaymentHook) ResolveReference(ctx context.Context, userID, orderID uuid.UUID) (decimal.Decimal, error) {
	order, err := h.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			return decimal.Zero, paymentModel.NewInvalidReferenceError("order " + orderID.String() + " not found")
		}
		return decimal.Zero, err
	}
	// A foreign order reads as not found, same as the order endpoints.
	if order.UserID != userID {
		return decimal.Zero, paymentModel.NewInvalidReferenceError("order " + orderID.String() + " not found")
	}
	if !order.IsOpen() {
		return decimal.Zero, paymentModel.NewInvalidReferenceError("order " + order.OrderNumber + " is not awaiting payment")
	}
	return order.Total, nil
}

func (h *PaymentHook) OnPaymentSuccess(ctx context.Context, intent *paymentModel.PaymentIntent) error {
	applied, err := h.orderRepo.MarkConfirmed(ctx, intent.ReferenceID, intent.ID)
	if err != nil {
		return fmt.Errorf("failed to confirm order %s: %w", intent.ReferenceID, err)
	}
	if !applied {
		logger.Warn("order already left pending_payment", map[string]interface{}{
			"order_id":  intent.ReferenceID.String(),
			"intent_id": intent.ID.String(),
		})
		return nil
	}

	order, err := h.orderRepo.GetByID(ctx, intent.ReferenceID)
	if err != nil {
		return err
	}

	// Cart clearing and the confirmation notice run async; the order is
	// already confirmed either way.
	payload := model.ConfirmOrderPayload{
		OrderID:     order.ID.String(),
		UserID:      order.UserID.String(),
		OrderNumber: order.OrderNumber,
	}
	if b, err := json.Marshal(payload); err == nil {
		task := asynq.NewTask(shared.TypeConfirmOrder, b)
		if _, err := h.asynq.Enqueue(task, asynq.Queue(shared.QueueOrder)); err != nil {
			logger.Error("Failed to enqueue order confirmation task", err)
		}
	}

	logger.Info("order confirmed by payment", map[string]interface{}{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"intent_id":    intent.ID.String(),
	})
	return nil
}

func (h *PaymentHook) OnPaymentFailure(ctx context.Context, intent *paymentModel.PaymentIntent, reason string) error {
	applied, err := h.orderRepo.MarkPaymentFailed(ctx, intent.ReferenceID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark order payment failed %s: %w", intent.ReferenceID, err)
	}
	if applied {
		logger.Info("order payment failed", map[string]interface{}{
			"order_id":  intent.ReferenceID.String(),
			"intent_id": intent.ID.String(),
			"reason":    reason,
		})
	}
	return nil
}
