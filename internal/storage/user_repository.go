package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"chatgo/internal/models"
)

// UserRepository defines the interface for user directory operations,
// including the blocklist and favorites relations owned by a user.
// It satisfies policy.Directory.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error)

	// Blocklist: directed edges, owner-mutated only.
	Block(ctx context.Context, blockerID, blockedID uint) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	IsBlocking(ctx context.Context, blockerID, blockedID uint) (bool, error)
	ListBlocked(ctx context.Context, blockerID uint) ([]models.UserBasicInfo, error)

	// Favorites: user -> conversation, idempotent add/remove.
	AddFavorite(ctx context.Context, userID, conversationID uint) error
	RemoveFavorite(ctx context.Context, userID, conversationID uint) error
	ListFavorites(ctx context.Context, userID uint) ([]*models.Conversation, error)

	GetDB() *gorm.DB
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username.
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user record in the database.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// SearchUsers finds users whose username or nickname matches the query,
// excluding the searching user themselves.
func (r *gormUserRepository) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error) {
	var users []models.User
	searchTerm := "%" + strings.ToLower(query) + "%"

	err := r.db.WithContext(ctx).
		Where("(LOWER(username) LIKE ? OR LOWER(nickname) LIKE ?) AND id != ?", searchTerm, searchTerm, currentUserID).
		Select("id", "username", "nickname").
		Limit(10).
		Find(&users).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return users, nil
		}
		return nil, err
	}
	return users, nil
}

// Block records a directed block edge. Blocking an already-blocked user is
// a no-op rather than an error.
func (r *gormUserRepository) Block(ctx context.Context, blockerID, blockedID uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BlockEntry{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	entry := &models.BlockEntry{BlockerID: blockerID, BlockedID: blockedID}
	return r.db.WithContext(ctx).Create(entry).Error
}

// Unblock removes a directed block edge; removing an absent edge is a no-op.
func (r *gormUserRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.BlockEntry{}).Error
}

// IsBlocking reports whether blockerID has blockedID on their blocklist.
func (r *gormUserRepository) IsBlocking(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlockEntry{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListBlocked returns the users blockerID has blocked.
func (r *gormUserRepository) ListBlocked(ctx context.Context, blockerID uint) ([]models.UserBasicInfo, error) {
	var blocked []models.UserBasicInfo
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.id", "users.username", "users.nickname").
		Joins("JOIN block_entries ON block_entries.blocked_id = users.id").
		Where("block_entries.blocker_id = ? AND block_entries.deleted_at IS NULL", blockerID).
		Find(&blocked).Error
	if err != nil {
		return nil, err
	}
	return blocked, nil
}

// AddFavorite marks a conversation as a favorite; already-favorited is a no-op.
func (r *gormUserRepository) AddFavorite(ctx context.Context, userID, conversationID uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	favorite := &models.Favorite{UserID: userID, ConversationID: conversationID}
	return r.db.WithContext(ctx).Create(favorite).Error
}

// RemoveFavorite unmarks a favorite; removing an absent one is a no-op.
func (r *gormUserRepository) RemoveFavorite(ctx context.Context, userID, conversationID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Delete(&models.Favorite{}).Error
}

// ListFavorites returns the conversations the user has favorited.
func (r *gormUserRepository) ListFavorites(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Joins("JOIN favorites ON favorites.conversation_id = conversations.id").
		Where("favorites.user_id = ? AND favorites.deleted_at IS NULL", userID).
		Preload("Participants").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// GetDB returns the underlying gorm.DB instance.
func (r *gormUserRepository) GetDB() *gorm.DB {
	return r.db
}
