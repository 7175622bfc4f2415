package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prepmate/backend/models"
	"gorm.io/gorm"
)

// Company operations
func (r *GORMRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		slog.Error("Failed to create company", "error", err, "name", company.Name)
		return translateError(err)
	}
	slog.Info("Company created", "company_id", company.ID, "name", company.Name)
	return nil
}

func (r *GORMRepository) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &company, nil
}

func (r *GORMRepository) ListCompanies(ctx context.Context, query string) ([]models.Company, error) {
	var companies []models.Company
	q := r.db.WithContext(ctx).Order("name")
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(industry) LIKE ?)", like, like)
	}
	if err := q.Find(&companies).Error; err != nil {
		slog.Error("Failed to list companies", "error", err)
		return nil, err
	}
	return companies, nil
}

// GetCompany loads a company with its active jobs, newest first
func (r *GORMRepository) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("posted_at DESC")
		}).
		Where("id = ?", id).
		First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get company", "error", err, "company_id", id)
		return nil, err
	}
	return &company, nil
}

// Job operations
func (r *GORMRepository) CreateJob(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		slog.Error("Failed to create job", "error", err, "title", job.Title)
		return translateError(err)
	}
	slog.Info("Job created", "job_id", job.ID, "title", job.Title)
	return nil
}

func (r *GORMRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Preload("Company").Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get job", "error", err, "job_id", id)
		return nil, err
	}
	return &job, nil
}

// SearchJobs returns one page of active jobs matching the filter and the total match count
func (r *GORMRepository) SearchJobs(ctx context.Context, f models.JobFilter) ([]models.Job, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{}).
		Joins("JOIN companies ON companies.id = jobs.company_id AND companies.deleted_at IS NULL").
		Where("jobs.is_active = ?", true)

	if query := strings.TrimSpace(f.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("(LOWER(jobs.title) LIKE ? OR LOWER(jobs.description) LIKE ? OR LOWER(companies.name) LIKE ?)", like, like, like)
	}
	if f.Location != "" {
		q = q.Where("LOWER(jobs.location) LIKE ?", "%"+strings.ToLower(f.Location)+"%")
	}
	if f.EmploymentType != "" {
		q = q.Where("jobs.employment_type = ?", f.EmploymentType)
	}
	if f.Level != "" {
		q = q.Where("jobs.level = ?", f.Level)
	}
	if f.Remote != nil {
		q = q.Where("jobs.remote = ?", *f.Remote)
	}
	if f.CompanyID != "" {
		q = q.Where("jobs.company_id = ?", f.CompanyID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		slog.Error("Failed to count jobs", "error", err)
		return nil, 0, err
	}

	var jobs []models.Job
	err := q.Preload("Company").
		Order("jobs.posted_at DESC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&jobs).Error
	if err != nil {
		slog.Error("Failed to search jobs", "error", err)
		return nil, 0, err
	}
	return jobs, total, nil
}

// Saved job operations
func (r *GORMRepository) SaveJob(ctx context.Context, userID, jobID string) error {
	saved := models.SavedJob{UserID: userID, JobID: jobID}
	err := r.db.WithContext(ctx).
		Where(models.SavedJob{UserID: userID, JobID: jobID}).
		FirstOrCreate(&saved).Error
	if err != nil {
		slog.Error("Failed to save job", "error", err, "user_id", userID, "job_id", jobID)
		return translateError(err)
	}
	return nil
}

func (r *GORMRepository) UnsaveJob(ctx context.Context, userID, jobID string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Delete(&models.SavedJob{}).Error
	if err != nil {
		slog.Error("Failed to unsave job", "error", err, "user_id", userID, "job_id", jobID)
		return err
	}
	return nil
}

func (r *GORMRepository) ListSavedJobs(ctx context.Context, userID string) ([]models.SavedJob, error) {
	var saved []models.SavedJob
	err := r.db.WithContext(ctx).
		Preload("Job.Company").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&saved).Error
	if err != nil {
		slog.Error("Failed to list saved jobs", "error", err, "user_id", userID)
		return nil, err
	}
	return saved, nil
}
