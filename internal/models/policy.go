package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PolicyType is the guardrail category a policy belongs to.
type PolicyType string

const (
	PolicyHumanRequest    PolicyType = "human_request"    // explicit "let me talk to a person"
	PolicyAbusiveLanguage PolicyType = "abusive_language" // profanity / abuse
	PolicyPricingClaim    PolicyType = "pricing_claim"    // unverified price commitments
	PolicyLegalDisclaimer PolicyType = "legal_disclaimer" // mandatory disclosure
)

// Policy is a configured guardrail rule. Keywords holds the match phrases;
// ContentAr/ContentHe hold the rule text shown to the user (safe rewrite
// or disclosure) when the policy fires.
type Policy struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Type      PolicyType                  `gorm:"type:text;not null;index" json:"type"`
	TitleAr   string                      `gorm:"type:text" json:"title_ar"`
	TitleHe   string                      `gorm:"type:text" json:"title_he"`
	ContentAr string                      `gorm:"type:text" json:"content_ar"`
	ContentHe string                      `gorm:"type:text" json:"content_he"`
	Keywords  datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"keywords"`
	Active    bool                        `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Policy) TableName() string {
	return "policies"
}

func (p *Policy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Content returns the rule text for a language, falling back to Arabic.
func (p *Policy) Content(language string) string {
	if language == "he" && p.ContentHe != "" {
		return p.ContentHe
	}
	return p.ContentAr
}
