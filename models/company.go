package models

import (
	"time"

	"gorm.io/gorm"
)

// Company is an employer whose open positions are browsable
type Company struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Industry    string         `gorm:"size:100;index" json:"industry,omitempty"`
	Website     string         `gorm:"size:500" json:"website,omitempty"`
	Location    string         `gorm:"size:255" json:"location,omitempty"`
	Size        string         `gorm:"size:50" json:"size,omitempty"` // e.g. "51-200"
	Description string         `gorm:"type:text" json:"description,omitempty"`
	LogoURL     string         `gorm:"size:500" json:"logo_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Jobs []Job `gorm:"foreignKey:CompanyID" json:"jobs,omitempty"`
}
