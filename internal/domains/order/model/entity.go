package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// ORDER ENTITY (payment boundary view)
// =====================================================
// The storefront's full order lifecycle lives elsewhere; the payment
// subsystem only reads the fields below and flips the payment flag.

type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderNumber string          `json:"order_number" db:"order_number"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	Total       decimal.Decimal `json:"total" db:"total"`
	Status      string          `json:"status" db:"status"`
	IsPaid      bool            `json:"is_paid" db:"is_paid"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Order statuses the payment subsystem cares about
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

var ErrOrderNotFound = errors.New("order not found")
