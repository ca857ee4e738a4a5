package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/payment/model"
)

// =====================================================
// REPOSITORY INTERFACES
// =====================================================

// TransactionRepository is the payment transaction store. Status updates
// are conditional: a row leaves pending exactly once, so replayed
// callbacks and races between the return and webhook paths are harmless.
type TransactionRepository interface {
	// Create persists a new pending transaction
	Create(ctx context.Context, tx *model.Transaction) error

	// GetByID gets a transaction by primary key
	GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)

	// GetByOrderRef gets the latest transaction for a merchant order reference
	GetByOrderRef(ctx context.Context, orderRef string) (*model.Transaction, error)

	// MarkAsSuccess finalizes a pending transaction as successful.
	// Returns ErrTransactionFinalized when the row already left pending.
	MarkAsSuccess(ctx context.Context, orderRef, transactionID string, gatewayResponse map[string]interface{}) error

	// MarkAsFailed finalizes a pending transaction as failed.
	// Returns ErrTransactionFinalized when the row already left pending.
	MarkAsFailed(ctx context.Context, orderRef, errorCode, errorMessage string, gatewayResponse map[string]interface{}) error

	// SetGatewayOrder records the gateway-issued order id on the row
	SetGatewayOrder(ctx context.Context, id uuid.UUID, bdOrderID string) error

	// UpdateMetadata merges fields into the transaction's metadata bag
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]interface{}) error

	// MostRecentPendingSince finds the newest pending transaction created
	// after the cutoff. Legacy order-id recovery only.
	MostRecentPendingSince(ctx context.Context, cutoff time.Time) (*model.Transaction, error)

	// ListStalePending lists pending transactions older than the threshold,
	// oldest first, for the background poller
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Transaction, error)
}

// DiagnosticRepository is the append-only escalation log. Record never
// returns an error: a broken diagnostic write must not fail a payment.
type DiagnosticRepository interface {
	Record(ctx context.Context, event *model.DiagnosticEvent)
}
