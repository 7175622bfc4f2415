package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prepmate/backend/models"
	"gorm.io/gorm"
)

// Interviewer operations
func (r *GORMRepository) CreateInterviewer(ctx context.Context, interviewer *models.Interviewer) error {
	if err := r.db.WithContext(ctx).Create(interviewer).Error; err != nil {
		slog.Error("Failed to create interviewer", "error", err, "name", interviewer.Name)
		return translateError(err)
	}
	slog.Info("Interviewer created", "interviewer_id", interviewer.ID, "name", interviewer.Name)
	return nil
}

func (r *GORMRepository) GetInterviewerByName(ctx context.Context, name string) (*models.Interviewer, error) {
	var interviewer models.Interviewer
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&interviewer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &interviewer, nil
}

func (r *GORMRepository) GetInterviewer(ctx context.Context, id string) (*models.Interviewer, error) {
	var interviewer models.Interviewer
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&interviewer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interviewer", "error", err, "interviewer_id", id)
		return nil, err
	}
	return &interviewer, nil
}

func (r *GORMRepository) ListInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	var interviewers []models.Interviewer
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&interviewers).Error; err != nil {
		slog.Error("Failed to list interviewers", "error", err)
		return nil, err
	}
	return interviewers, nil
}

// Interview session operations

// CreateInterviewSession inserts the session and its questions in one transaction
func (r *GORMRepository) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions := session.Questions
		session.Questions = nil
		if err := tx.Omit("Job", "Resume", "Interviewer").Create(session).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].SessionID = session.ID
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		session.Questions = questions
		return nil
	})
	if err != nil {
		slog.Error("Failed to create interview session", "error", err, "user_id", session.UserID)
		return translateError(err)
	}
	slog.Info("Interview session created", "session_id", session.ID, "user_id", session.UserID, "questions", len(session.Questions))
	return nil
}

func preloadSessionDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Answer").
		Preload("Job.Company").
		Preload("Interviewer")
}

// GetInterviewSessionWithDetails loads a user's session with questions, answers, job and interviewer
func (r *GORMRepository) GetInterviewSessionWithDetails(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := preloadSessionDetails(r.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &session, nil
}

func (r *GORMRepository) ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := r.db.WithContext(ctx).
		Preload("Job.Company").
		Preload("Interviewer").
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list interview sessions", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

// ListInterviewSessionsWithDetails is used by the export; every question and answer is loaded
func (r *GORMRepository) ListInterviewSessionsWithDetails(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := preloadSessionDetails(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list interview sessions with details", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

func (r *GORMRepository) DeleteInterviewSession(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.InterviewAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.InterviewQuestion{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&models.InterviewSession{}).Error
	})
	if err != nil {
		slog.Error("Failed to delete interview session", "error", err, "session_id", sessionID)
		return err
	}
	slog.Info("Interview session deleted", "session_id", sessionID)
	return nil
}

// CreateAnswer stores an answer and moves the session cursor forward.
// A second answer for the same question yields ErrDuplicate.
func (r *GORMRepository) CreateAnswer(ctx context.Context, answer *models.InterviewAnswer, nextIndex int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}
		return tx.Model(&models.InterviewSession{}).
			Where("id = ?", answer.SessionID).
			Updates(map[string]interface{}{"current_index": nextIndex, "updated_at": time.Now()}).Error
	})
	if err != nil {
		err = translateError(err)
		if !errors.Is(err, ErrDuplicate) {
			slog.Error("Failed to create answer", "error", err, "session_id", answer.SessionID, "question_id", answer.QuestionID)
		}
		return err
	}
	slog.Info("Answer stored", "session_id", answer.SessionID, "question_id", answer.QuestionID, "score", answer.Score)
	return nil
}

// FinishInterviewSession persists the terminal state of a session
func (r *GORMRepository) FinishInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	err := r.db.WithContext(ctx).Model(&models.InterviewSession{ID: session.ID}).
		Select("status", "ended_at", "duration", "overall_score", "feedback").
		Updates(session).Error
	if err != nil {
		slog.Error("Failed to finish interview session", "error", err, "session_id", session.ID)
		return err
	}
	slog.Info("Interview session finished", "session_id", session.ID, "status", session.Status)
	return nil
}

// SaveInterviewFeedback replaces the overall feedback and score of a session
func (r *GORMRepository) SaveInterviewFeedback(ctx context.Context, sessionID string, score float64, feedback *models.InterviewFeedback) error {
	err := r.db.WithContext(ctx).Model(&models.InterviewSession{ID: sessionID}).
		Select("overall_score", "feedback").
		Updates(models.InterviewSession{OverallScore: &score, Feedback: feedback}).Error
	if err != nil {
		slog.Error("Failed to save interview feedback", "error", err, "session_id", sessionID)
		return err
	}
	return nil
}

// TouchInterviewSession records activity on a live session
func (r *GORMRepository) TouchInterviewSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now()).Error
}

// ListIdleActiveSessions returns active sessions with no activity since cutoff
func (r *GORMRepository) ListIdleActiveSessions(ctx context.Context, cutoff time.Time) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := preloadSessionDetails(r.db.WithContext(ctx)).
		Where("status = ? AND updated_at < ?", models.SessionStatusActive, cutoff).
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list idle sessions", "error", err)
		return nil, err
	}
	return sessions, nil
}
