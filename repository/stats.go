package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepmate/backend/models"
)

// GetUserStats aggregates dashboard statistics for a user
func (r *GORMRepository) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalInterviews).Error; err != nil {
		slog.Error("Failed to count interviews", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count interviews: %w", err)
	}

	if err := db.Model(&models.InterviewSession{}).
		Where("user_id = ? AND status = ?", userID, models.SessionStatusCompleted).
		Count(&stats.CompletedInterviews).Error; err != nil {
		slog.Error("Failed to count completed interviews", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count completed interviews: %w", err)
	}

	if err := db.Model(&models.InterviewAnswer{}).
		Joins("JOIN interview_sessions ON interview_sessions.id = interview_answers.session_id").
		Where("interview_sessions.user_id = ? AND interview_sessions.deleted_at IS NULL", userID).
		Count(&stats.AnsweredQuestions).Error; err != nil {
		slog.Error("Failed to count answers", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}

	var scores struct {
		Average float64
		Best    float64
	}
	if err := db.Model(&models.InterviewSession{}).
		Select("COALESCE(AVG(overall_score), 0) AS average, COALESCE(MAX(overall_score), 0) AS best").
		Where("user_id = ? AND overall_score IS NOT NULL", userID).
		Scan(&scores).Error; err != nil {
		slog.Error("Failed to aggregate scores", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to aggregate scores: %w", err)
	}
	stats.AverageScore = scores.Average
	stats.BestScore = scores.Best

	if err := db.Model(&models.Resume{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalResumes).Error; err != nil {
		return nil, fmt.Errorf("failed to count resumes: %w", err)
	}

	if err := db.Model(&models.Resume{}).
		Where("user_id = ? AND status = ?", userID, models.ResumeStatusAnalyzed).
		Count(&stats.AnalyzedResumes).Error; err != nil {
		return nil, fmt.Errorf("failed to count analyzed resumes: %w", err)
	}

	if err := db.Model(&models.SavedJob{}).
		Where("user_id = ?", userID).
		Count(&stats.SavedJobs).Error; err != nil {
		return nil, fmt.Errorf("failed to count saved jobs: %w", err)
	}

	var last struct{ At *time.Time }
	if err := db.Model(&models.InterviewSession{}).
		Select("MAX(updated_at) AS at").
		Where("user_id = ?", userID).
		Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("failed to get last activity: %w", err)
	}
	stats.LastActivity = last.At

	slog.Info("User stats retrieved", "user_id", userID, "interviews", stats.TotalInterviews)
	return &stats, nil
}
