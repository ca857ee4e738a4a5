package main

import (
	"github.com/hibiken/asynq"

	paymentJob "storefront-backend/internal/domains/payment/job"
	"storefront-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	pollStale *paymentJob.PollStaleHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		pollStale: paymentJob.NewPollStaleHandler(c.PaymentService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(paymentJob.TypePollStaleTransactions, h.pollStale.ProcessTask)
}
