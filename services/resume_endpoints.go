package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// multipart headers and the target_job_id field
const multipartOverhead = 1 << 20

type ResumeEndpoints struct {
	resumeService *ResumeService
	authService   *AuthService
}

type AnalyzeResumeRequest struct {
	ResumeID string `json:"resume_id" validate:"required,uuid"`
	JobID    string `json:"job_id" validate:"omitempty,uuid"`
}

func NewResumeEndpoints(resumeService *ResumeService, authService *AuthService) *ResumeEndpoints {
	return &ResumeEndpoints{resumeService: resumeService, authService: authService}
}

func (e *ResumeEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/resumes", func(r chi.Router) {
		r.Use(e.authService.Middleware)
		r.Post("/", e.UploadHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{id}", e.GetHandler)
		r.Get("/{id}/file", e.FileHandler)
		r.Delete("/{id}", e.DeleteHandler)
		r.Post("/{id}/analyze", e.AnalyzeHandler)
	})
}

// UploadHandler accepts multipart field "resume" and optional "target_job_id"
func (e *ResumeEndpoints) UploadHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	maxBytes := e.resumeService.MaxBytes()

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeServiceError(w, r, ErrFileTooLarge)
			return
		}
		writeServiceError(w, r, fmt.Errorf("%w: invalid multipart form", ErrInvalidInput))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("resume")
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("%w: resume file is required", ErrInvalidInput))
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeServiceError(w, r, ErrFileTooLarge)
		return
	}

	resume, err := e.resumeService.Upload(r.Context(), user.ID, header.Filename, file, r.FormValue("target_job_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resume)
}

func (e *ResumeEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	resumes, err := e.resumeService.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resumes": resumes})
}

func (e *ResumeEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	resume, err := e.resumeService.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

// FileHandler streams the original upload back to its owner
func (e *ResumeEndpoints) FileHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	resume, err := e.resumeService.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	f, err := os.Open(resume.StoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "Resume file missing")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", resume.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resume.FileName))
	http.ServeContent(w, r, resume.FileName, info.ModTime(), f)
}

func (e *ResumeEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if err := e.resumeService.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeHandler takes an optional {"job_id"} body
func (e *ResumeEndpoints) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req struct {
		JobID string `json:"job_id" validate:"omitempty,uuid"`
	}
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	resume, err := e.resumeService.Analyze(r.Context(), user.ID, chi.URLParam(r, "id"), req.JobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

// AnalyzeAliasHandler serves POST /api/ai/analyze-resume
func (e *ResumeEndpoints) AnalyzeAliasHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req AnalyzeResumeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	resume, err := e.resumeService.Analyze(r.Context(), user.ID, req.ResumeID, req.JobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resume_id": resume.ID,
		"analysis":  resume.Analysis,
	})
}
