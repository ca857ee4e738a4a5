package service

import (
	"context"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/user/model"
)

// =====================================================
// USER SERVICE INTERFACE (payment boundary)
// =====================================================
type UserService interface {
	// GetContactInfo gets a user's contact details for payload enrichment
	GetContactInfo(ctx context.Context, userID uuid.UUID) (*model.ContactInfo, error)
}
