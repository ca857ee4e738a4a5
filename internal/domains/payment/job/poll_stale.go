package job

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"storefront-backend/internal/domains/payment/service"
	"storefront-backend/pkg/logger"
)

// Task types for the payment domain
const (
	TypePollStaleTransactions = "payment:poll_stale"
)

// PollStalePayload is the (currently empty) task payload. Kept as a
// struct so new knobs can ride along without a task type change.
type PollStalePayload struct{}

// PollStaleHandler reconciles pending transactions whose callback never
// arrived by asking the gateway for their final state.
type PollStaleHandler struct {
	paymentService service.PaymentService
}

func NewPollStaleHandler(paymentService service.PaymentService) *PollStaleHandler {
	return &PollStaleHandler{paymentService: paymentService}
}

func (h *PollStaleHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload PollStalePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("invalid poll_stale payload", err)
		// Malformed payload will not improve on retry
		return nil
	}

	finalized, err := h.paymentService.PollStaleTransactions(ctx)
	if err != nil {
		logger.Error("stale transaction poll failed", err)
		return err
	}

	logger.Info("stale transaction poll completed", map[string]interface{}{
		"finalized": finalized,
	})
	return nil
}
