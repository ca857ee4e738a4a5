package service

import (
	"context"

	"github.com/google/uuid"

	"storefront-backend/internal/domains/user/model"
	"storefront-backend/internal/domains/user/repository"
)

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetContactInfo(ctx context.Context, userID uuid.UUID) (*model.ContactInfo, error) {
	return s.userRepo.GetContactInfo(ctx, userID)
}
