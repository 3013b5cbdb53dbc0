package services

import (
	"context"
	"errors"
	"fmt"

	"chatgo/internal/auth"
	"chatgo/internal/config"
	"chatgo/internal/models"
	"chatgo/internal/storage"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// AuthService defines the user authentication service interface.
type AuthService interface {
	Register(ctx context.Context, username, nickname, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (token string, user *models.User, err error)
}

// authService is the AuthService implementation.
type authService struct {
	userRepo storage.UserRepository
	cfg      config.Config
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo storage.UserRepository, cfg config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// Register creates a new account with a unique username.
func (s *authService) Register(ctx context.Context, username, nickname, password string) (*models.User, error) {
	_, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	newUser := &models.User{
		Username:     username,
		Nickname:     nickname,
		PasswordHash: hashedPassword,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return newUser, nil
}

// Login verifies the credentials and issues a JWT on success.
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("issuing token: %w", err)
	}

	return token, user, nil
}
