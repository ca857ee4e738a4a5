package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront-backend/internal/domains/user/model"
)

// =====================================================
// USER REPOSITORY IMPLEMENTATION
// =====================================================
type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// GetContactInfo gets a user's contact details
func (r *userRepository) GetContactInfo(ctx context.Context, userID uuid.UUID) (*model.ContactInfo, error) {
	query := `
		SELECT id, email, COALESCE(phone, '')
		FROM users
		WHERE id = $1
	`

	contact := &model.ContactInfo{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&contact.UserID,
		&contact.Email,
		&contact.Phone,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user contact: %w", err)
	}

	return contact, nil
}
