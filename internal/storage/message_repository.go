package storage

import (
	"context"

	"gorm.io/gorm"

	"chatgo/internal/models"
)

// MessageRepository defines the interface for message data operations.
// Messages are append-only; there is no update or delete path.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// GetByConversationID returns messages in creation order, oldest first,
	// ties broken by insertion id.
	GetByConversationID(ctx context.Context, conversationID uint, limit int, offset int) ([]*models.Message, error)
}

// gormMessageRepository implements MessageRepository using GORM.
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based MessageRepository.
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create creates a new message record in the database.
func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID retrieves a message by ID with its sender loaded.
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetByConversationID retrieves a page of a conversation's messages.
func (r *gormMessageRepository) GetByConversationID(ctx context.Context, conversationID uint, limit int, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Preload("Sender").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
