package repository

import (
	"context"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/user/model"
)

// UserRepository is the read surface the payment flow needs
type UserRepository interface {
	// GetContactInfo gets a user's contact details
	GetContactInfo(ctx context.Context, userID uuid.UUID) (*model.ContactInfo, error)
}
