package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prepmate/backend/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type jobStore interface {
	SearchJobs(ctx context.Context, f models.JobFilter) ([]models.Job, int64, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	SaveJob(ctx context.Context, userID, jobID string) error
	UnsaveJob(ctx context.Context, userID, jobID string) error
	ListSavedJobs(ctx context.Context, userID string) ([]models.SavedJob, error)
	ListCompanies(ctx context.Context, query string) ([]models.Company, error)
	GetCompany(ctx context.Context, id string) (*models.Company, error)
}

type JobEndpoints struct {
	repo        jobStore
	authService *AuthService
}

func NewJobEndpoints(repo jobStore, authService *AuthService) *JobEndpoints {
	return &JobEndpoints{repo: repo, authService: authService}
}

// RegisterRoutes mounts /jobs and /companies; listing is public, saving requires a user
func (e *JobEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", e.ListJobsHandler)
		r.Group(func(r chi.Router) {
			r.Use(e.authService.Middleware)
			r.Get("/saved", e.ListSavedHandler)
			r.Post("/{id}/save", e.SaveHandler)
			r.Delete("/{id}/save", e.UnsaveHandler)
		})
		r.Get("/{id}", e.GetJobHandler)
	})
	r.Route("/companies", func(r chi.Router) {
		r.Get("/", e.ListCompaniesHandler)
		r.Get("/{id}", e.GetCompanyHandler)
	})
}

// parseJobFilter reads search parameters; out of range paging is rejected
func parseJobFilter(r *http.Request) (models.JobFilter, error) {
	q := r.URL.Query()
	f := models.JobFilter{
		Query:          strings.TrimSpace(q.Get("q")),
		Location:       strings.TrimSpace(q.Get("location")),
		EmploymentType: q.Get("type"),
		Level:          q.Get("level"),
		CompanyID:      q.Get("company_id"),
		Page:           1,
		PageSize:       defaultPageSize,
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return f, fmt.Errorf("%w: page must be a positive integer", ErrInvalidInput)
		}
		f.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > maxPageSize {
			return f, fmt.Errorf("%w: page_size must be between 1 and %d", ErrInvalidInput, maxPageSize)
		}
		f.PageSize = size
	}
	if v := q.Get("remote"); v != "" {
		remote, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: remote must be a boolean", ErrInvalidInput)
		}
		f.Remote = &remote
	}

	if f.CompanyID != "" {
		if err := validID("company_id", f.CompanyID); err != nil {
			return f, err
		}
	}

	switch f.EmploymentType {
	case "", models.EmploymentFullTime, models.EmploymentPartTime, models.EmploymentContract, models.EmploymentInternship:
	default:
		return f, fmt.Errorf("%w: unknown employment type %q", ErrInvalidInput, f.EmploymentType)
	}
	switch f.Level {
	case "", models.LevelEntry, models.LevelMid, models.LevelSenior, models.LevelLead:
	default:
		return f, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, f.Level)
	}
	return f, nil
}

func (e *JobEndpoints) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := parseJobFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	jobs, total, err := e.repo.SearchJobs(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      jobs,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

func (e *JobEndpoints) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isUUID(id) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	job, err := e.repo.GetJob(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *JobEndpoints) SaveHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	jobID := chi.URLParam(r, "id")
	if !isUUID(jobID) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	job, err := e.repo.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	if err := e.repo.SaveJob(r.Context(), user.ID, jobID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"saved": true, "job_id": jobID})
}

func (e *JobEndpoints) UnsaveHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	jobID := chi.URLParam(r, "id")
	if !isUUID(jobID) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	if err := e.repo.UnsaveJob(r.Context(), user.ID, jobID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"saved": false, "job_id": jobID})
}

func (e *JobEndpoints) ListSavedHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	saved, err := e.repo.ListSavedJobs(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"saved_jobs": saved})
}

func (e *JobEndpoints) ListCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	companies, err := e.repo.ListCompanies(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"companies": companies})
}

func (e *JobEndpoints) GetCompanyHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isUUID(id) {
		writeError(w, http.StatusNotFound, "Company not found")
		return
	}
	company, err := e.repo.GetCompany(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if company == nil {
		writeError(w, http.StatusNotFound, "Company not found")
		return
	}
	writeJSON(w, http.StatusOK, company)
}
