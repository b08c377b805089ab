package main

import (
	"github.com/hibiken/asynq"

	orderJob "sokoni-backend/internal/domains/order/job"
	paymentJob "sokoni-backend/internal/domains/payment/job"
	"sokoni-backend/internal/shared"
	"sokoni-backend/pkg/container"
)

// HandlerRegistry wires task types to their handlers
type HandlerRegistry struct {
	confirmOrder *orderJob.ConfirmOrderHandler
	sweepIntents *paymentJob.SweepStaleIntentsHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		confirmOrder: orderJob.NewConfirmOrderHandler(c.CartRepo),
		sweepIntents: paymentJob.NewSweepStaleIntentsHandler(c.PaymentService, c.Config.Job),
	}
}

func (r *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.Handle(shared.TypeConfirmOrder, r.confirmOrder)
	mux.Handle(shared.TypeSweepStaleIntent, r.sweepIntents)
}
