package models

import (
	"time"

	"gorm.io/gorm"
)

// Interviewer is a seeded interviewer persona. Its personality shapes the
// generated questions, the feedback tone and the text-to-speech voice.
type Interviewer struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Personality string         `gorm:"size:50;not null" json:"personality"` // strict, encouraging, technical, balanced
	Gender      string         `gorm:"size:20" json:"gender,omitempty"`
	Industry    string         `gorm:"size:100" json:"industry,omitempty"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
