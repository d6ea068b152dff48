package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/events"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

// UserCreator persists new users. Create returns cqrs.ErrEmailTaken for a
// duplicate email.
type UserCreator interface {
	Create(ctx context.Context, user *models.User) error
}

type AuthCommandService struct {
	users     UserCreator
	publisher events.Publisher
	logger    *zap.Logger
}

func NewAuthCommandService(users UserCreator, publisher events.Publisher, logger *zap.Logger) *AuthCommandService {
	return &AuthCommandService{users: users, publisher: publisher, logger: logger}
}

func (s *AuthCommandService) Register(ctx context.Context, cmd cqrs.RegisterUserCommand) (*models.UserView, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           utils.GenerateID(),
		Name:         strings.TrimSpace(cmd.Name),
		Email:        strings.ToLower(strings.TrimSpace(cmd.Email)),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.UserEventsStream, events.UserRegistered, events.UserRegisteredEvent{
		UserID: user.ID,
		Email:  user.Email,
	}); err != nil {
		s.logger.Warn("Failed to publish user event", zap.String("userId", user.ID), zap.Error(err))
	}
	return user.View(), nil
}
