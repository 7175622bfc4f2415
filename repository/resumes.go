package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prepmate/backend/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) CreateResume(ctx context.Context, resume *models.Resume) error {
	if err := r.db.WithContext(ctx).Create(resume).Error; err != nil {
		slog.Error("Failed to create resume", "error", err, "user_id", resume.UserID)
		return err
	}
	slog.Info("Resume created", "resume_id", resume.ID, "user_id", resume.UserID, "size", resume.SizeBytes)
	return nil
}

// GetResume returns a resume only if it belongs to userID
func (r *GORMRepository) GetResume(ctx context.Context, id, userID string) (*models.Resume, error) {
	var resume models.Resume
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&resume).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get resume", "error", err, "resume_id", id)
		return nil, err
	}
	return &resume, nil
}

func (r *GORMRepository) ListResumes(ctx context.Context, userID string) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.WithContext(ctx).
		Omit("extracted_text").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		slog.Error("Failed to list resumes", "error", err, "user_id", userID)
		return nil, err
	}
	return resumes, nil
}

func (r *GORMRepository) SetResumeStatus(ctx context.Context, id, status string) error {
	err := r.db.WithContext(ctx).Model(&models.Resume{}).Where("id = ?", id).Update("status", status).Error
	if err != nil {
		slog.Error("Failed to update resume status", "error", err, "resume_id", id, "status", status)
		return err
	}
	return nil
}

func (r *GORMRepository) SaveResumeAnalysis(ctx context.Context, id string, analysis *models.ResumeAnalysis, analyzedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Resume{ID: id}).Updates(models.Resume{
		Status:     models.ResumeStatusAnalyzed,
		Analysis:   analysis,
		AnalyzedAt: &analyzedAt,
	}).Error
	if err != nil {
		slog.Error("Failed to save resume analysis", "error", err, "resume_id", id)
		return err
	}
	slog.Info("Resume analysis saved", "resume_id", id, "overall_score", analysis.OverallScore)
	return nil
}

func (r *GORMRepository) DeleteResume(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Resume{}).Error; err != nil {
		slog.Error("Failed to delete resume", "error", err, "resume_id", id)
		return err
	}
	slog.Info("Resume deleted", "resume_id", id)
	return nil
}
