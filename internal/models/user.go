package models

// User represents a registered account.
type User struct {
	BaseModel
	Username     string `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // never exposed
	Nickname     string `gorm:"type:varchar(100)" json:"nickname,omitempty"`
	Bio          string `gorm:"type:text" json:"bio,omitempty"`

	// Associations
	Messages      []Message       `gorm:"foreignKey:SenderID" json:"messages,omitempty"`
	Conversations []*Conversation `gorm:"many2many:conversation_participants;" json:"conversations,omitempty"`
}

// UserBasicInfo holds minimal public information about a user, for embedding
// in participant listings and search results.
type UserBasicInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// BlockEntry is a directed edge in the blocklist: BlockerID has blocked
// BlockedID. Blocking is asymmetric; the reverse edge is a separate row.
type BlockEntry struct {
	BaseModel
	BlockerID uint `gorm:"not null;uniqueIndex:idx_block_pair" json:"blockerId"`
	BlockedID uint `gorm:"not null;uniqueIndex:idx_block_pair" json:"blockedId"`

	Blocker User `gorm:"foreignKey:BlockerID" json:"-"`
	Blocked User `gorm:"foreignKey:BlockedID" json:"-"`
}

// TableName specifies the table name for the BlockEntry model.
func (BlockEntry) TableName() string {
	return "block_entries"
}

// Favorite marks a conversation as a favorite of a user.
type Favorite struct {
	BaseModel
	UserID         uint `gorm:"not null;uniqueIndex:idx_favorite_pair" json:"userId"`
	ConversationID uint `gorm:"not null;uniqueIndex:idx_favorite_pair" json:"conversationId"`

	User         User         `gorm:"foreignKey:UserID" json:"-"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

// TableName specifies the table name for the Favorite model.
func (Favorite) TableName() string {
	return "favorites"
}
