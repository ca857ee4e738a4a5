package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/order/model"
	"storefront-backend/internal/domains/order/repository"
)

type orderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return s.orderRepo.GetByOrderNumber(ctx, orderNumber)
}

func (s *orderService) MarkOrderPaid(ctx context.Context, orderID uuid.UUID) error {
	if err := s.orderRepo.MarkPaid(ctx, orderID); err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	return nil
}
