package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HandoffReason records why a conversation was routed to a human.
type HandoffReason string

const (
	ReasonExplicitRequest HandoffReason = "explicit_request"
	ReasonGuardrail       HandoffReason = "guardrail"
	ReasonUnknownStreak   HandoffReason = "unknown_streak"
	ReasonAdminAction     HandoffReason = "admin_action"
)

// HandoffStatus is the agent-side lifecycle of a handoff request.
type HandoffStatus string

const (
	HandoffPending  HandoffStatus = "pending"
	HandoffResolved HandoffStatus = "resolved"
)

// Handoff is a request for a human agent to take over a conversation.
// At most one pending handoff exists per conversation.
type Handoff struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ConversationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Reason         HandoffReason `gorm:"type:text;not null" json:"reason"`
	Summary        string        `gorm:"type:text" json:"summary"`
	Status         HandoffStatus `gorm:"type:text;not null;default:'pending';index" json:"status"`
	AssignedTo     *uuid.UUID    `gorm:"type:uuid" json:"assigned_to,omitempty"`
	CustomerPhone  string        `gorm:"type:text" json:"customer_phone,omitempty"`
	CustomerName   string        `gorm:"type:text" json:"customer_name,omitempty"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
}

func (Handoff) TableName() string {
	return "handoffs"
}

func (h *Handoff) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
