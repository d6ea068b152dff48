package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/monli/monli/shared/cqrs"
	"github.com/monli/monli/shared/middleware"
	"github.com/monli/monli/shared/models"
	"github.com/monli/monli/shared/utils"
)

type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthQueryService handles login, token refresh and profile reads. None of
// them mutate application state.
type AuthQueryService struct {
	users    UserFinder
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthQueryService(users UserFinder, secret []byte, tokenTTL time.Duration) *AuthQueryService {
	return &AuthQueryService{users: users, secret: secret, tokenTTL: tokenTTL, now: time.Now}
}

func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (string, error) {
	user, err := s.users.GetByEmail(ctx, cmd.Email)
	if errors.Is(err, cqrs.ErrUserNotFound) {
		return "", cqrs.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !utils.CheckPassword(cmd.Password, user.PasswordHash) {
		return "", cqrs.ErrInvalidCredentials
	}
	return s.generateToken(user.ID, user.Email)
}

// RefreshToken exchanges a valid, unexpired token for a fresh one. The user
// must still exist.
func (s *AuthQueryService) RefreshToken(ctx context.Context, cmd cqrs.RefreshTokenCommand) (string, error) {
	claims, err := middleware.ParseToken(cmd.Token, s.secret)
	if err != nil || claims.UserID == "" {
		return "", cqrs.ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, cqrs.ErrUserNotFound) {
		return "", cqrs.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return s.generateToken(user.ID, user.Email)
}

func (s *AuthQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	user, err := s.users.GetByID(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return user.View(), nil
}

func (s *AuthQueryService) generateToken(userID, email string) (string, error) {
	now := s.now()
	claims := middleware.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}
