package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-backend/internal/domains/payment/model"
	"storefront-backend/pkg/logger"
)

// =====================================================
// DIAGNOSTIC EVENT REPOSITORY IMPLEMENTATION
// =====================================================
type diagnosticRepository struct {
	pool *pgxpool.Pool
}

func NewDiagnosticRepository(pool *pgxpool.Pool) DiagnosticRepository {
	return &diagnosticRepository{pool: pool}
}

// Record appends one escalation event. Append-only, fire-and-forget:
// a failed write is logged and swallowed so the payment path never
// depends on the diagnostic table being healthy.
func (r *diagnosticRepository) Record(ctx context.Context, event *model.DiagnosticEvent) {
	query := `
		INSERT INTO payment_diagnostics (
			id, trace_id, order_ref, kind, message, payload, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		logger.Error("failed to marshal diagnostic payload", fmt.Errorf("trace %s: %w", event.TraceID, err))
		payloadJSON = []byte("{}")
	}

	_, err = r.pool.Exec(ctx, query,
		event.ID,
		event.TraceID,
		event.OrderRef,
		event.Kind,
		event.Message,
		payloadJSON,
		event.RecordedAt,
	)

	if err != nil {
		logger.Error("failed to record diagnostic event", fmt.Errorf("trace %s kind %s: %w", event.TraceID, event.Kind, err))
	}
}
