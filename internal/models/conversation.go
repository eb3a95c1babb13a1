package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel identifies the transport a conversation lives on.
type Channel string

const (
	ChannelWebchat  Channel = "webchat"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// ConversationStatus is the lifecycle state of a conversation.
// Transitions only move forward: active → escalated → closed, or
// active → closed. A message after closed opens a new conversation.
type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"
	StatusEscalated ConversationStatus = "escalated"
	StatusClosed    ConversationStatus = "closed"
)

// Conversation is one visitor/channel thread from first message to closure.
type Conversation struct {
	ID            uuid.UUID          `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VisitorID     string             `gorm:"type:text;not null;index:idx_conversations_visitor" json:"visitor_id"`
	Channel       Channel            `gorm:"type:text;not null;index:idx_conversations_visitor" json:"channel"`
	Status        ConversationStatus `gorm:"type:text;not null;default:'active';index" json:"status"`
	Language      string             `gorm:"type:varchar(5)" json:"language"` // "ar" or "he", sticky once set
	Intent        string             `gorm:"type:text" json:"intent"`         // last classified intent, denormalized
	CustomerID    *uuid.UUID         `gorm:"type:uuid" json:"customer_id,omitempty"`
	CustomerPhone string             `gorm:"type:text" json:"customer_phone,omitempty"`
	MessageCount  int                `gorm:"not null;default:0" json:"message_count"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CanTransition reports whether moving to the target status is legal.
func (c *Conversation) CanTransition(to ConversationStatus) bool {
	switch c.Status {
	case StatusActive:
		return to == StatusEscalated || to == StatusClosed
	case StatusEscalated:
		return to == StatusClosed
	default:
		return false
	}
}
