package models

import "time"

// Conversation represents a chat thread, either private (exactly two
// participants, name derived from the other participant) or group
// (two or more participants, creator-supplied name).
type Conversation struct {
	BaseModel
	IsGroup   bool   `gorm:"not null;index" json:"isGroup"`
	Name      string `gorm:"type:varchar(255)" json:"name,omitempty"`
	CreatorID uint   `gorm:"not null;index" json:"creatorId"`

	// Associations
	Creator      User                      `gorm:"foreignKey:CreatorID" json:"-"`
	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	Messages     []Message                 `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName specifies the table name for the Conversation model.
func (Conversation) TableName() string {
	return "conversations"
}

// HasParticipant reports whether the given user is currently a member.
// Participants must be loaded for this to be meaningful.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the loaded participant user IDs in join order.
func (c *Conversation) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// ConversationParticipant links a user to a conversation. One row per
// (conversation, user) pair for both private and group conversations.
type ConversationParticipant struct {
	BaseModel
	ConversationID uint      `gorm:"not null;uniqueIndex:idx_conversation_user" json:"conversationId"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_conversation_user" json:"userId"`
	JoinedAt       time.Time `json:"joinedAt"`

	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

// TableName specifies the table name for the ConversationParticipant model.
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}
