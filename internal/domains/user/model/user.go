package model

import (
	"errors"

	"github.com/google/uuid"
)

// =====================================================
// USER CONTACT (payment boundary view)
// =====================================================
// Account management lives elsewhere; the payment subsystem only reads
// contact details to enrich the gateway payload.

type ContactInfo struct {
	UserID uuid.UUID `json:"user_id" db:"user_id"`
	Email  string    `json:"email" db:"email"`
	Phone  string    `json:"phone" db:"phone"`
}

var ErrUserNotFound = errors.New("user not found")
