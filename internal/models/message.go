package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRole marks who produced a message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleBot    MessageRole = "bot"
	RoleSystem MessageRole = "system" // lifecycle markers in the transcript
)

// Message is one turn in a conversation. Append-only.
type Message struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	// Seq is database-assigned and strictly increasing; it orders messages
	// within a conversation when created_at timestamps collide.
	Seq               int64       `gorm:"->;column:seq" json:"-"`
	ConversationID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role              MessageRole `gorm:"type:text;not null" json:"role"`
	Content           string      `gorm:"type:text;not null" json:"content"`
	Intent            string      `gorm:"type:text" json:"intent,omitempty"` // set for user messages
	ProviderMessageID string      `gorm:"type:text;uniqueIndex:idx_messages_provider_id,where:provider_message_id <> ''" json:"provider_message_id,omitempty"`
	CreatedAt         time.Time   `gorm:"autoCreateTime;index" json:"created_at"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
