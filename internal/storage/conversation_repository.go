package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatgo/internal/models"
	"chatgo/internal/policy"
)

// ConversationRepository defines the interface for conversation data
// operations. Participant-set mutations run inside a transaction that
// locks the conversation row, so two concurrent adds cannot both pass a
// membership check and double-insert.
type ConversationRepository interface {
	// CreateConversation persists the conversation and its initial
	// participant set (already deduplicated, creator included) atomically.
	CreateConversation(ctx context.Context, conversation *models.Conversation, participantIDs []uint) error
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	// GetUserConversations lists the user's conversations ordered by most
	// recent message first; conversations with no messages sort last.
	GetUserConversations(ctx context.Context, userID uint) ([]*models.Conversation, error)
	// AddParticipants appends newIDs to the participant set, all-or-nothing,
	// under a per-conversation row lock.
	AddParticipants(ctx context.Context, conversationID uint, newIDs []uint) error
	GetParticipant(ctx context.Context, conversationID uint, userID uint) (*models.ConversationParticipant, error)

	GetDB() *gorm.DB
}

// gormConversationRepository implements ConversationRepository using GORM.
type gormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a new GORM-based ConversationRepository.
func NewGormConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// CreateConversation creates the conversation row and one participant row
// per user in a single transaction. An abort leaves nothing behind.
func (r *gormConversationRepository) CreateConversation(ctx context.Context, conversation *models.Conversation, participantIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		now := time.Now()
		for _, userID := range participantIDs {
			participant := &models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         userID,
				JoinedAt:       now,
			}
			if err := tx.Create(participant).Error; err != nil {
				return fmt.Errorf("adding participant %d to conversation %d: %w", userID, conversation.ID, err)
			}
		}
		return nil
	})
}

// GetConversationByID retrieves a conversation with its participants and
// their user records loaded.
func (r *gormConversationRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("conversation_participants.joined_at ASC, conversation_participants.id ASC")
		}).
		Preload("Participants.User").
		First(&conversation, id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// GetUserConversations lists the user's conversations, most recently active
// first. The ordering key is the newest message timestamp; NULLS LAST pushes
// message-less conversations to the end.
func (r *gormConversationRepository) GetUserConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("conversations.*, MAX(messages.created_at) AS last_activity_at").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ? AND cp.deleted_at IS NULL", userID).
		Joins("LEFT JOIN messages ON messages.conversation_id = conversations.id AND messages.deleted_at IS NULL").
		Group("conversations.id").
		Order("last_activity_at DESC NULLS LAST").
		Preload("Participants").
		Preload("Participants.User").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// AddParticipants appends the given users to the conversation inside a
// transaction holding a FOR UPDATE lock on the conversation row. The lock
// serializes concurrent adds to the same conversation; the recheck under
// the lock turns a lost race into ErrConcurrentModification instead of a
// duplicate membership row.
func (r *gormConversationRepository) AddParticipants(ctx context.Context, conversationID uint, newIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conversation, conversationID).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id IN ?", conversationID, newIDs).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("rechecking membership for conversation %d: %w", conversationID, err)
		}
		if existing > 0 {
			return policy.ErrConcurrentModification
		}

		now := time.Now()
		for _, userID := range newIDs {
			participant := &models.ConversationParticipant{
				ConversationID: conversationID,
				UserID:         userID,
				JoinedAt:       now,
			}
			if err := tx.Create(participant).Error; err != nil {
				return fmt.Errorf("adding participant %d to conversation %d: %w", userID, conversationID, err)
			}
		}
		return nil
	})
}

// GetParticipant fetches the membership row for (conversation, user),
// returning gorm.ErrRecordNotFound when the user is not a member.
func (r *gormConversationRepository) GetParticipant(ctx context.Context, conversationID uint, userID uint) (*models.ConversationParticipant, error) {
	var participant models.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// GetDB returns the underlying gorm.DB instance.
func (r *gormConversationRepository) GetDB() *gorm.DB {
	return r.db
}
