package services

import (
	"context"
	"errors"
	"fmt"

	"chatgo/internal/models"
	"chatgo/internal/policy"
	"chatgo/internal/storage"

	"gorm.io/gorm"
)

// UserService defines user directory operations exposed to the gateway:
// profiles, search, and the caller's own blocklist. Blocklist entries are
// mutated only by the blocking user acting on themselves, never by the
// target.
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error)

	BlockUser(ctx context.Context, actorID uint, username string) error
	UnblockUser(ctx context.Context, actorID uint, username string) error
	ListBlockedUsers(ctx context.Context, actorID uint) ([]models.UserBasicInfo, error)
}

// userService is the UserService implementation.
type userService struct {
	userRepo storage.UserRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo storage.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// GetUserProfile fetches a user by ID.
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user %d: %w", userID, err)
	}
	return user, nil
}

// SearchUsers finds users matching the query, excluding the caller.
func (s *userService) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error) {
	return s.userRepo.SearchUsers(ctx, query, currentUserID)
}

// BlockUser adds the named user to the actor's blocklist. The relation is
// directed: it stops the target from inviting or messaging the actor, not
// the other way around.
func (s *userService) BlockUser(ctx context.Context, actorID uint, username string) error {
	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrUserNotFound
		}
		return fmt.Errorf("looking up user %q: %w", username, err)
	}
	return s.userRepo.Block(ctx, actorID, target.ID)
}

// UnblockUser removes the named user from the actor's blocklist.
func (s *userService) UnblockUser(ctx context.Context, actorID uint, username string) error {
	target, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrUserNotFound
		}
		return fmt.Errorf("looking up user %q: %w", username, err)
	}
	return s.userRepo.Unblock(ctx, actorID, target.ID)
}

// ListBlockedUsers returns the users the actor has blocked.
func (s *userService) ListBlockedUsers(ctx context.Context, actorID uint) ([]models.UserBasicInfo, error) {
	return s.userRepo.ListBlocked(ctx, actorID)
}
