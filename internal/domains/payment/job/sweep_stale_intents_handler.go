package job

import (
	"context"

	"github.com/hibiken/asynq"

	"sokoni-backend/internal/config"
	"sokoni-backend/internal/domains/payment/service"
	"sokoni-backend/pkg/logger"
)

// SweepStaleIntentsHandler rescues pending intents whose confirmation
// callback never arrived. Scheduled periodically by the worker.
type SweepStaleIntentsHandler struct {
	paymentService service.PaymentService
	cfg            config.JobConfig
}

func NewSweepStaleIntentsHandler(paymentService service.PaymentService, cfg config.JobConfig) *SweepStaleIntentsHandler {
	return &SweepStaleIntentsHandler{
		paymentService: paymentService,
		cfg:            cfg,
	}
}

func (h *SweepStaleIntentsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logger.Info("Processing stale intent sweep", map[string]interface{}{
		"min_age":    h.cfg.SweepMinAge.String(),
		"batch_size": h.cfg.SweepBatchSize,
	})

	settled, err := h.paymentService.SweepStaleIntents(ctx, h.cfg.SweepMinAge, h.cfg.SweepBatchSize)
	if err != nil {
		logger.Error("Stale intent sweep failed", err)
		return err
	}

	logger.Info("Stale intent sweep completed", map[string]interface{}{
		"settled": settled,
	})
	return nil
}
