package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"
)

const (
	InterviewTypeTechnical  = "technical"
	InterviewTypeBehavioral = "behavioral"
	InterviewTypeMixed      = "mixed"
)

const (
	AnswerSourceText  = "text"
	AnswerSourceAudio = "audio"
	AnswerSourceVoice = "voice"
)

// InterviewSession represents each mock interview attempt
type InterviewSession struct {
	ID            string             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID        string             `gorm:"type:uuid;not null;index" json:"user_id"`
	JobID         *string            `gorm:"type:uuid;index" json:"job_id,omitempty"`
	ResumeID      *string            `gorm:"type:uuid;index" json:"resume_id,omitempty"`
	InterviewerID *string            `gorm:"type:uuid;index" json:"interviewer_id,omitempty"`
	Role          string             `gorm:"size:255;not null" json:"role"`
	InterviewType string             `gorm:"size:20;not null;default:'mixed';check:interview_type IN ('technical', 'behavioral', 'mixed')" json:"interview_type"`
	Difficulty    string             `gorm:"size:10;not null;default:'medium';check:difficulty IN ('easy', 'medium', 'hard')" json:"difficulty"`
	Status        string             `gorm:"not null;default:'active';check:status IN ('active', 'completed', 'abandoned')" json:"status"`
	QuestionCount int                `gorm:"not null" json:"question_count"`
	CurrentIndex  int                `gorm:"not null;default:0" json:"current_index"` // position of the next unanswered question
	VoiceID       string             `gorm:"size:64" json:"voice_id,omitempty"`
	StartedAt     time.Time          `gorm:"not null" json:"started_at"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	Duration      int                `json:"duration"` // seconds
	OverallScore  *float64           `gorm:"type:decimal(5,2)" json:"overall_score,omitempty"`
	Feedback      *InterviewFeedback `gorm:"type:jsonb;serializer:json" json:"feedback,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	DeletedAt     gorm.DeletedAt     `gorm:"index" json:"-"`

	// Relationships
	User        User                `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Job         *Job                `gorm:"foreignKey:JobID;constraint:OnDelete:SET NULL" json:"job,omitempty"`
	Resume      *Resume             `gorm:"foreignKey:ResumeID;constraint:OnDelete:SET NULL" json:"-"`
	Interviewer *Interviewer        `gorm:"foreignKey:InterviewerID;constraint:OnDelete:SET NULL" json:"interviewer,omitempty"`
	Questions   []InterviewQuestion `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// InterviewQuestion is one generated question, ordered by Position
type InterviewQuestion struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID      string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_question_session_position" json:"session_id"`
	Position       int            `gorm:"not null;uniqueIndex:idx_question_session_position" json:"position"`
	Text           string         `gorm:"type:text;not null" json:"text"`
	Category       string         `gorm:"size:50" json:"category"`
	ExpectedPoints []string       `gorm:"type:jsonb;serializer:json" json:"expected_points,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Answer *InterviewAnswer `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answer,omitempty"`
}

// InterviewAnswer stores what the candidate said and the feedback on it
type InterviewAnswer struct {
	ID              string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	QuestionID      string          `gorm:"type:uuid;not null;uniqueIndex" json:"question_id"`
	SessionID       string          `gorm:"type:uuid;not null;index" json:"session_id"`
	Transcript      string          `gorm:"type:text;not null" json:"transcript"`
	Source          string          `gorm:"size:10;not null;default:'text';check:source IN ('text', 'audio', 'voice')" json:"source"`
	DurationSeconds int             `json:"duration_seconds"`
	Score           float64         `gorm:"type:decimal(4,2)" json:"score"` // 0-10
	Feedback        *AnswerFeedback `gorm:"type:jsonb;serializer:json" json:"feedback,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// AnswerFeedback is the per-answer LLM evaluation
type AnswerFeedback struct {
	Score        float64  `json:"score"` // 0-10
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	SampleAnswer string   `json:"sample_answer,omitempty"`
	Generated    bool     `json:"generated"` // false when produced by the offline heuristic
}

// InterviewFeedback is the overall analysis of a session
type InterviewFeedback struct {
	OverallScore    float64            `json:"overall_score"` // 0-100
	Summary         string             `json:"summary"`
	Strengths       []string           `json:"strengths"`
	Weaknesses      []string           `json:"weaknesses"`
	Recommendations []string           `json:"recommendations"`
	CategoryScores  map[string]float64 `json:"category_scores,omitempty"`
	Generated       bool               `json:"generated"`
}

// AnsweredCount returns how many questions of a loaded session have answers
func (s *InterviewSession) AnsweredCount() int {
	n := 0
	for _, q := range s.Questions {
		if q.Answer != nil {
			n++
		}
	}
	return n
}

// NextQuestion returns the first unanswered question, or nil
func (s *InterviewSession) NextQuestion() *InterviewQuestion {
	for i := range s.Questions {
		if s.Questions[i].Answer == nil {
			return &s.Questions[i]
		}
	}
	return nil
}
