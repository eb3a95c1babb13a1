package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template is reply content keyed by intent, in both supported languages.
// Variables lists the {placeholder} names the content may reference.
type Template struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Key       string                      `gorm:"type:text;not null;index" json:"key"`
	ContentAr string                      `gorm:"type:text" json:"content_ar"`
	ContentHe string                      `gorm:"type:text" json:"content_he"`
	Variables datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"variables"`
	Active    bool                        `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Content returns the template body for a language, falling back to Arabic.
func (t *Template) Content(language string) string {
	if language == "he" && t.ContentHe != "" {
		return t.ContentHe
	}
	return t.ContentAr
}
