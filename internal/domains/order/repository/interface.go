package repository

import (
	"context"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/order/model"
)

// OrderRepository is the read/update surface the payment flow needs
type OrderRepository interface {
	// GetByOrderNumber gets an order by its public order number
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// MarkPaid flips the payment flag after a successful transaction
	MarkPaid(ctx context.Context, id uuid.UUID) error
}
