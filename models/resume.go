package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ResumeStatusUploaded  = "uploaded"
	ResumeStatusAnalyzing = "analyzing"
	ResumeStatusAnalyzed  = "analyzed"
	ResumeStatusFailed    = "failed"
)

type Resume struct {
	ID            string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID        string          `gorm:"type:uuid;not null;index" json:"user_id"`
	TargetJobID   *string         `gorm:"type:uuid;index" json:"target_job_id,omitempty"`
	FileName      string          `gorm:"size:255;not null" json:"file_name"`
	StoragePath   string          `gorm:"size:1024;not null" json:"-"`
	MimeType      string          `gorm:"size:100" json:"mime_type"`
	SizeBytes     int64           `json:"size_bytes"`
	ExtractedText string          `gorm:"type:text" json:"extracted_text,omitempty"`
	Status        string          `gorm:"size:20;not null;default:'uploaded';check:status IN ('uploaded', 'analyzing', 'analyzed', 'failed')" json:"status"`
	Analysis      *ResumeAnalysis `gorm:"type:jsonb;serializer:json" json:"analysis,omitempty"`
	AnalyzedAt    *time.Time      `json:"analyzed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`

	User      User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TargetJob *Job `gorm:"foreignKey:TargetJobID;constraint:OnDelete:SET NULL" json:"target_job,omitempty"`
}

// ResumeAnalysis is the LLM feedback blob stored with a resume
type ResumeAnalysis struct {
	OverallScore    float64  `json:"overall_score"` // 0-100
	ATSScore        float64  `json:"ats_score"`     // 0-100
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Suggestions     []string `json:"suggestions"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	MissingKeywords []string `json:"missing_keywords,omitempty"`
	JobID           string   `json:"job_id,omitempty"`
}
