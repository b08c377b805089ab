package job

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"sokoni-backend/internal/domains/order/model"
	repo "sokoni-backend/internal/domains/order/repository"
	"sokoni-backend/internal/shared/utils"
	"sokoni-backend/pkg/logger"
)

// ConfirmOrderHandler runs the follow-up work for a paid order: the
// cart gets cleared and the confirmation is logged for downstream
// notification plumbing.
type ConfirmOrderHandler struct {
	cartRepo repo.CartRepoInterface
}

func NewConfirmOrderHandler(cartRepo repo.CartRepoInterface) *ConfirmOrderHandler {
	return &ConfirmOrderHandler{cartRepo: cartRepo}
}

func (h *ConfirmOrderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ConfirmOrderPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	logger.Info("Processing order confirmation task", map[string]interface{}{
		"order_id":     payload.OrderID,
		"order_number": payload.OrderNumber,
	})

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("parse user ID: %w", err)
	}

	deleted, err := h.cartRepo.Clear(ctx, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	logger.Info("Order confirmation processed", map[string]interface{}{
		"order_id":      payload.OrderID,
		"cart_items":    deleted,
		"order_number":  payload.OrderNumber,
	})
	return nil
}
