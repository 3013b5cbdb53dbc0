package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"chatgo/internal/config"
	"chatgo/internal/kafka"
	"chatgo/internal/models"
	"chatgo/internal/policy"
	"chatgo/internal/storage"
	"chatgo/internal/wire"

	"gorm.io/gorm"
)

// ChatService is the single entry point for conversation and message
// operations. Every call runs as an authenticated actor; the policy layer
// decides, the repositories persist, and fan-out happens only after the
// store commit. A fan-out failure never fails the operation that caused it.
type ChatService interface {
	// CreateConversation starts a conversation on behalf of actorID with the
	// invited participants. The actor is always part of the resulting
	// participant set, whether or not they appear in participantIDs.
	CreateConversation(ctx context.Context, actorID uint, isGroup bool, name string, participantIDs []uint) (*models.Conversation, error)

	// PostMessage appends a message to the conversation and publishes it for
	// delivery to connected participants.
	PostMessage(ctx context.Context, actorID, conversationID uint, body string) (*models.Message, error)

	// AddParticipants appends new members to a group conversation,
	// all-or-nothing.
	AddParticipants(ctx context.Context, actorID, conversationID uint, newIDs []uint) (*models.Conversation, error)

	// SetFavorite marks or unmarks the conversation as a favorite of the
	// actor. Both directions are idempotent.
	SetFavorite(ctx context.Context, actorID, conversationID uint, favorite bool) error

	// ListConversations returns the actor's conversations, most recently
	// active first.
	ListConversations(ctx context.Context, actorID uint) ([]*models.Conversation, error)

	// ListFavorites returns the conversations the actor has favorited.
	ListFavorites(ctx context.Context, actorID uint) ([]*models.Conversation, error)

	// GetMessages returns a page of the conversation's history, oldest
	// first. Only participants may read it.
	GetMessages(ctx context.Context, actorID, conversationID uint, limit, offset int) ([]*models.Message, error)

	// DisplayName resolves the name the conversation is shown under to the
	// given viewer.
	DisplayName(ctx context.Context, viewerID uint, conversation *models.Conversation) (string, error)

	// IsParticipant reports whether the user belongs to the conversation.
	// Used by the websocket gateway before accepting a subscription.
	IsParticipant(ctx context.Context, userID, conversationID uint) (bool, error)
}

// chatService is the ChatService implementation.
type chatService struct {
	convoRepo storage.ConversationRepository
	msgRepo   storage.MessageRepository
	userRepo  storage.UserRepository
	pol       *policy.Policy
	producer  kafka.MessageProducer
	kafkaCfg  config.KafkaConfig
}

// NewChatService creates a new ChatService instance.
func NewChatService(
	convoRepo storage.ConversationRepository,
	msgRepo storage.MessageRepository,
	userRepo storage.UserRepository,
	pol *policy.Policy,
	producer kafka.MessageProducer,
	kafkaCfg config.KafkaConfig,
) ChatService {
	return &chatService{
		convoRepo: convoRepo,
		msgRepo:   msgRepo,
		userRepo:  userRepo,
		pol:       pol,
		producer:  producer,
		kafkaCfg:  kafkaCfg,
	}
}

// CreateConversation validates the request, persists the conversation with
// its full participant set in one transaction, and returns it reloaded with
// participants attached.
func (s *chatService) CreateConversation(ctx context.Context, actorID uint, isGroup bool, name string, participantIDs []uint) (*models.Conversation, error) {
	resolvedName, resolvedGroup, err := s.pol.ValidateCreate(ctx, actorID, isGroup, name, participantIDs)
	if err != nil {
		return nil, err
	}

	conversation := &models.Conversation{
		IsGroup:   resolvedGroup,
		Name:      resolvedName,
		CreatorID: actorID,
	}

	memberIDs := dedupWithActor(actorID, participantIDs)
	if err := s.convoRepo.CreateConversation(ctx, conversation, memberIDs); err != nil {
		return nil, fmt.Errorf("persisting conversation: %w", err)
	}

	return s.loadConversation(ctx, conversation.ID)
}

// PostMessage persists the message, then publishes the fan-out payload. The
// store commit is the source of truth: a publish failure is logged and the
// call still succeeds, so history and delivery can never disagree about
// whether the message exists.
func (s *chatService) PostMessage(ctx context.Context, actorID, conversationID uint, body string) (*models.Message, error) {
	conversation, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.pol.ValidatePost(ctx, actorID, conversation); err != nil {
		return nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("loading sender %d: %w", actorID, err)
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       actorID,
		Body:           body,
	}
	if err := s.msgRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("persisting message: %w", err)
	}
	message.Sender = *sender

	s.publishMessage(ctx, message, sender.Username)

	return message, nil
}

// publishMessage sends the persisted message to the outgoing topic, keyed by
// conversation so one conversation's messages stay ordered on a single
// partition. Failures are logged only; the message is already committed.
func (s *chatService) publishMessage(ctx context.Context, message *models.Message, senderUsername string) {
	payload := wire.MessagePayload{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		SenderUsername: senderUsername,
		Body:           message.Body,
		SentAt:         message.CreatedAt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshaling fan-out payload for message %d: %v", message.ID, err)
		return
	}

	key := []byte(strconv.FormatUint(uint64(message.ConversationID), 10))
	if err := s.producer.SendMessage(ctx, s.kafkaCfg.OutgoingTopic, key, data); err != nil {
		log.Printf("publishing message %d to topic %s: %v", message.ID, s.kafkaCfg.OutgoingTopic, err)
	}
}

// AddParticipants validates against the current membership, then appends the
// new members under the repository's row lock and returns the conversation
// reloaded with the grown participant set.
func (s *chatService) AddParticipants(ctx context.Context, actorID, conversationID uint, newIDs []uint) (*models.Conversation, error) {
	conversation, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.pol.ValidateAddParticipants(ctx, actorID, conversation, newIDs); err != nil {
		return nil, err
	}

	if err := s.convoRepo.AddParticipants(ctx, conversationID, dedup(newIDs)); err != nil {
		if errors.Is(err, policy.ErrConcurrentModification) {
			return nil, err
		}
		return nil, fmt.Errorf("adding participants to conversation %d: %w", conversationID, err)
	}

	return s.loadConversation(ctx, conversationID)
}

// SetFavorite adds or removes the conversation from the actor's favorites.
func (s *chatService) SetFavorite(ctx context.Context, actorID, conversationID uint, favorite bool) error {
	conversation, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	if err := s.pol.ValidateFavorite(actorID, conversation); err != nil {
		return err
	}

	if favorite {
		return s.userRepo.AddFavorite(ctx, actorID, conversationID)
	}
	return s.userRepo.RemoveFavorite(ctx, actorID, conversationID)
}

// ListConversations returns the actor's conversations ordered by newest
// message first, conversations without messages last.
func (s *chatService) ListConversations(ctx context.Context, actorID uint) ([]*models.Conversation, error) {
	return s.convoRepo.GetUserConversations(ctx, actorID)
}

// ListFavorites returns the actor's favorited conversations.
func (s *chatService) ListFavorites(ctx context.Context, actorID uint) ([]*models.Conversation, error) {
	return s.userRepo.ListFavorites(ctx, actorID)
}

// GetMessages returns a page of conversation history after checking the
// actor is a participant.
func (s *chatService) GetMessages(ctx context.Context, actorID, conversationID uint, limit, offset int) ([]*models.Message, error) {
	conversation, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, policy.ErrNotAParticipant
	}
	return s.msgRepo.GetByConversationID(ctx, conversationID, limit, offset)
}

// DisplayName resolves the conversation's name for the viewer.
func (s *chatService) DisplayName(ctx context.Context, viewerID uint, conversation *models.Conversation) (string, error) {
	return s.pol.ResolveDisplayName(ctx, viewerID, conversation)
}

// IsParticipant reports membership without loading the whole conversation.
func (s *chatService) IsParticipant(ctx context.Context, userID, conversationID uint) (bool, error) {
	_, err := s.convoRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking membership of user %d in conversation %d: %w", userID, conversationID, err)
	}
	return true, nil
}

// loadConversation fetches a conversation with participants, mapping a
// missing row to the domain error.
func (s *chatService) loadConversation(ctx context.Context, conversationID uint) (*models.Conversation, error) {
	conversation, err := s.convoRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrConversationNotFound
		}
		return nil, fmt.Errorf("loading conversation %d: %w", conversationID, err)
	}
	return conversation, nil
}

// dedupWithActor returns ids with duplicates removed and the actor included
// exactly once, preserving first-seen order with the actor up front.
func dedupWithActor(actorID uint, ids []uint) []uint {
	seen := map[uint]struct{}{actorID: {}}
	out := make([]uint, 0, len(ids)+1)
	out = append(out, actorID)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dedup returns ids with duplicates removed, preserving first-seen order.
func dedup(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
