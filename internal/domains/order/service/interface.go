package service

import (
	"context"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/order/model"
)

// =====================================================
// ORDER SERVICE INTERFACE (payment boundary)
// =====================================================
type OrderService interface {
	// GetOrderByNumber gets an order by its public order number
	GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error)

	// MarkOrderPaid records that the order's payment succeeded
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error
}
