package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-backend/internal/domains/order/model"
)

// =====================================================
// ORDER REPOSITORY IMPLEMENTATION
// =====================================================
type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

// GetByOrderNumber gets an order by its public order number
func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	query := `
		SELECT id, order_number, user_id, total, status, is_paid, created_at, updated_at
		FROM orders
		WHERE order_number = $1
	`

	order := &model.Order{}
	err := r.pool.QueryRow(ctx, query, orderNumber).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.IsPaid,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// MarkPaid flips the payment flag after a successful transaction
func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE orders
		SET is_paid = TRUE,
			status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}
