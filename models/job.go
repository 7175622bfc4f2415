package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	EmploymentFullTime   = "full_time"
	EmploymentPartTime   = "part_time"
	EmploymentContract   = "contract"
	EmploymentInternship = "internship"
)

const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
	LevelLead   = "lead"
)

type Job struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CompanyID      string         `gorm:"type:uuid;not null;index" json:"company_id"`
	Title          string         `gorm:"not null;index" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Location       string         `gorm:"size:255;index" json:"location,omitempty"`
	EmploymentType string         `gorm:"size:20;not null;default:'full_time';check:employment_type IN ('full_time', 'part_time', 'contract', 'internship')" json:"employment_type"`
	Level          string         `gorm:"size:20;not null;default:'mid';check:level IN ('entry', 'mid', 'senior', 'lead')" json:"level"`
	Remote         bool           `gorm:"default:false" json:"remote"`
	SalaryMin      *int           `json:"salary_min,omitempty"`
	SalaryMax      *int           `json:"salary_max,omitempty"`
	Currency       string         `gorm:"size:3;default:'USD'" json:"currency,omitempty"`
	Skills         []string       `gorm:"type:jsonb;serializer:json" json:"skills"`
	PostedAt       time.Time      `gorm:"not null;index" json:"posted_at"`
	IsActive       bool           `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Company *Company `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"company,omitempty"`
}

// SavedJob bookmarks a job for a user; the pair is unique
type SavedJob struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_saved_job_user_job" json:"user_id"`
	JobID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_saved_job_user_job" json:"job_id"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Job  *Job `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"job,omitempty"`
}

// JobFilter narrows a job search. Zero values mean "any".
type JobFilter struct {
	Query          string
	Location       string
	EmploymentType string
	Level          string
	Remote         *bool
	CompanyID      string
	Page           int
	PageSize       int
}

func (f JobFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
