package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-backend/internal/domains/payment/model"
)

// =====================================================
// TRANSACTION REPOSITORY IMPLEMENTATION
// =====================================================
type txRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &txRepository{pool: pool}
}

const txColumns = `
	id, order_ref, gateway, bd_order_id, transaction_id, trace_id,
	amount, currency, status, error_code, error_message, metadata,
	initiated_at, completed_at, failed_at, created_at, updated_at
`

// Create persists a new pending transaction
func (r *txRepository) Create(ctx context.Context, tx *model.Transaction) error {
	query := `
		INSERT INTO payment_transactions (
			id, order_ref, gateway, trace_id, amount, currency, status,
			metadata, initiated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at, updated_at
	`

	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		tx.ID,
		tx.OrderRef,
		tx.Gateway,
		tx.TraceID,
		tx.Amount,
		tx.Currency,
		tx.Status,
		metadataJSON,
		tx.InitiatedAt,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}

	return nil
}

// GetByID gets a transaction by primary key
func (r *txRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM payment_transactions WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByOrderRef gets the latest transaction for an order reference
func (r *txRepository) GetByOrderRef(ctx context.Context, orderRef string) (*model.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM payment_transactions
		WHERE order_ref = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, orderRef))
}

// MarkAsSuccess finalizes a pending transaction as successful.
// The WHERE status = 'pending' guard makes replays and the return/webhook
// race harmless: whoever lands first wins, everyone else gets
// ErrTransactionFinalized.
func (r *txRepository) MarkAsSuccess(
	ctx context.Context,
	orderRef, transactionID string,
	gatewayResponse map[string]interface{},
) error {
	query := `
		UPDATE payment_transactions
		SET status = 'success',
			transaction_id = $2,
			metadata = metadata || $3::jsonb,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE order_ref = $1 AND status = 'pending'
	`

	responseJSON, _ := json.Marshal(map[string]interface{}{"last_gateway_response": gatewayResponse})

	result, err := r.pool.Exec(ctx, query, orderRef, transactionID, responseJSON)
	if err != nil {
		return fmt.Errorf("failed to mark transaction as success: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.zeroRowsError(ctx, orderRef)
	}

	return nil
}

// MarkAsFailed finalizes a pending transaction as failed
func (r *txRepository) MarkAsFailed(
	ctx context.Context,
	orderRef, errorCode, errorMessage string,
	gatewayResponse map[string]interface{},
) error {
	query := `
		UPDATE payment_transactions
		SET status = 'failed',
			error_code = $2,
			error_message = $3,
			metadata = metadata || $4::jsonb,
			failed_at = NOW(),
			updated_at = NOW()
		WHERE order_ref = $1 AND status = 'pending'
	`

	responseJSON, _ := json.Marshal(map[string]interface{}{"last_gateway_response": gatewayResponse})

	result, err := r.pool.Exec(ctx, query, orderRef, errorCode, errorMessage, responseJSON)
	if err != nil {
		return fmt.Errorf("failed to mark transaction as failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.zeroRowsError(ctx, orderRef)
	}

	return nil
}

// zeroRowsError distinguishes "row missing" from "row already terminal"
// after a conditional update touched nothing
func (r *txRepository) zeroRowsError(ctx context.Context, orderRef string) error {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM payment_transactions WHERE order_ref = $1 ORDER BY created_at DESC LIMIT 1`,
		orderRef,
	).Scan(&status)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrTransactionNotFound
		}
		return fmt.Errorf("failed to inspect transaction status: %w", err)
	}

	return model.ErrTransactionFinalized
}

// SetGatewayOrder records the gateway-issued order id
func (r *txRepository) SetGatewayOrder(ctx context.Context, id uuid.UUID, bdOrderID string) error {
	query := `
		UPDATE payment_transactions
		SET bd_order_id = $2,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, bdOrderID)
	if err != nil {
		return fmt.Errorf("failed to set gateway order id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrTransactionNotFound
	}

	return nil
}

// UpdateMetadata merges fields into the metadata bag
func (r *txRepository) UpdateMetadata(
	ctx context.Context,
	id uuid.UUID,
	metadata map[string]interface{},
) error {
	query := `
		UPDATE payment_transactions
		SET metadata = metadata || $2::jsonb,
			updated_at = NOW()
		WHERE id = $1
	`

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	result, err := r.pool.Exec(ctx, query, id, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrTransactionNotFound
	}

	return nil
}

// MostRecentPendingSince finds the newest pending transaction created after
// the cutoff. Used only by legacy order-id recovery.
func (r *txRepository) MostRecentPendingSince(ctx context.Context, cutoff time.Time) (*model.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM payment_transactions
		WHERE status = 'pending' AND created_at >= $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, cutoff))
}

// ListStalePending lists pending transactions waiting longer than olderThan,
// oldest first. Used by the background poller.
func (r *txRepository) ListStalePending(
	ctx context.Context,
	olderThan time.Duration,
	limit int,
) ([]*model.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM payment_transactions
		WHERE status = 'pending'
		AND initiated_at < NOW() - $1::interval
		ORDER BY initiated_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, olderThan.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

// scanOne scans a full transaction row
func (r *txRepository) scanOne(row pgx.Row) (*model.Transaction, error) {
	tx := &model.Transaction{}
	var metadataJSON []byte

	err := row.Scan(
		&tx.ID,
		&tx.OrderRef,
		&tx.Gateway,
		&tx.BdOrderID,
		&tx.TransactionID,
		&tx.TraceID,
		&tx.Amount,
		&tx.Currency,
		&tx.Status,
		&tx.ErrorCode,
		&tx.ErrorMessage,
		&metadataJSON,
		&tx.InitiatedAt,
		&tx.CompletedAt,
		&tx.FailedAt,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return tx, nil
}
