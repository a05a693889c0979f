package service

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/table"
)

// UserService struct represents the user service layer
type UserService struct {
	users UserRepository
}

func NewUserService(users UserRepository) *UserService {
	return &UserService{
		users: users,
	}
}

// GetOrCreateUser checks if a user exists and creates them if not
func (s *UserService) GetOrCreateUser(ctx context.Context, userInfo models.User) (*models.User, error) {
	if userInfo.UserId <= 0 {
		return nil, fmt.Errorf("%w: %d", table.ErrUnknownPlayer, userInfo.UserId)
	}

	existingUser, err := s.users.GetByID(ctx, userInfo.UserId)
	if err == nil {
		return existingUser, nil
	}
	if !errors.Is(err, table.ErrUnknownPlayer) {
		return nil, err
	}

	log.Infof("user %d not found, creating", userInfo.UserId)
	userInfo.Status = "ACTIVE"
	userId, err := s.users.CreateUser(ctx, userInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userInfo.UserId = userId
	return &userInfo, nil
}
