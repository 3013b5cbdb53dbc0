package models

// Message represents a chat message stored in the database. Messages are
// immutable once created; CreatedAt is the authoritative ordering key,
// with the auto-incremented ID breaking ties.
type Message struct {
	BaseModel
	ConversationID uint   `gorm:"index;not null" json:"conversationId"`
	SenderID       uint   `gorm:"index;not null" json:"senderId"`
	Body           string `gorm:"type:text;not null" json:"body"`

	// Associations
	Sender       User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}
