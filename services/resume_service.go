package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prepmate/backend/extract"
	"github.com/prepmate/backend/metrics"
	"github.com/prepmate/backend/models"
)

const defaultMaxResumeBytes = 5 << 20

type resumeStore interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResume(ctx context.Context, id, userID string) (*models.Resume, error)
	ListResumes(ctx context.Context, userID string) ([]models.Resume, error)
	SetResumeStatus(ctx context.Context, id, status string) error
	SaveResumeAnalysis(ctx context.Context, id string, analysis *models.ResumeAnalysis, analyzedAt time.Time) error
	DeleteResume(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
}

type ResumeService struct {
	repo      resumeStore
	llm       LLM
	uploadDir string
	maxBytes  int64
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewResumeService(repo resumeStore, llm LLM, cfg StorageConfig, m *metrics.Metrics) *ResumeService {
	maxBytes := cfg.MaxResumeBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResumeBytes
	}
	return &ResumeService{
		repo:      repo,
		llm:       llm,
		uploadDir: cfg.UploadDir,
		maxBytes:  maxBytes,
		metrics:   m,
		now:       time.Now,
	}
}

// MaxBytes is the largest accepted upload
func (s *ResumeService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates, stores and extracts a resume. A failed extraction keeps the
// resume with empty text so the file can still be downloaded.
func (s *ResumeService) Upload(ctx context.Context, userID, fileName string, file io.Reader, targetJobID string) (*models.Resume, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, fmt.Errorf("%w: missing file name", ErrInvalidInput)
	}

	br := bufio.NewReaderSize(file, 3072)
	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	mimeType, err := extract.Detect(fileName, head)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	var jobID *string
	if targetJobID != "" {
		if err := validID("target_job_id", targetJobID); err != nil {
			return nil, err
		}
		job, err := s.repo.GetJob(ctx, targetJobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("%w: target job", ErrNotFound)
		}
		jobID = &job.ID
	}

	dir := filepath.Join(s.uploadDir, userID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))

	size, err := s.writeLimited(path, br)
	if err != nil {
		return nil, err
	}

	text, err := extract.Text(ctx, path)
	if err != nil {
		slog.Warn("Resume text extraction failed", "error", err, "user_id", userID, "file", fileName)
		text = ""
	}

	resume := &models.Resume{
		UserID:        userID,
		TargetJobID:   jobID,
		FileName:      fileName,
		StoragePath:   path,
		MimeType:      mimeType,
		SizeBytes:     size,
		ExtractedText: text,
		Status:        models.ResumeStatusUploaded,
	}
	if err := s.repo.CreateResume(ctx, resume); err != nil {
		os.Remove(path)
		return nil, err
	}
	s.metrics.ResumeUploaded()
	return resume, nil
}

// writeLimited copies at most maxBytes to path and removes the file when the source is larger
func (s *ResumeService) writeLimited(path string, src io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(src, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return 0, ErrFileTooLarge
		}
		return 0, fmt.Errorf("failed to store file: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(path)
		return 0, ErrFileTooLarge
	}
	return n, nil
}

func (s *ResumeService) Get(ctx context.Context, userID, id string) (*models.Resume, error) {
	if err := requireID("resume", id); err != nil {
		return nil, err
	}
	resume, err := s.repo.GetResume(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if resume == nil {
		return nil, fmt.Errorf("%w: resume", ErrNotFound)
	}
	return resume, nil
}

func (s *ResumeService) List(ctx context.Context, userID string) ([]models.Resume, error) {
	return s.repo.ListResumes(ctx, userID)
}

// Delete removes the record and its stored file
func (s *ResumeService) Delete(ctx context.Context, userID, id string) error {
	resume, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteResume(ctx, resume.ID); err != nil {
		return err
	}
	if err := os.Remove(resume.StoragePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove resume file", "error", err, "path", resume.StoragePath)
	}
	return nil
}

// Analyze runs the LLM review, optionally against a job. The status moves
// through analyzing to analyzed or failed.
func (s *ResumeService) Analyze(ctx context.Context, userID, id, jobID string) (*models.Resume, error) {
	resume, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resume.ExtractedText) == "" {
		return nil, fmt.Errorf("%w: resume has no extractable text", ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, ErrAIUnavailable
	}

	if jobID == "" && resume.TargetJobID != nil {
		jobID = *resume.TargetJobID
	}
	req := ResumeAnalysisRequest{ResumeText: resume.ExtractedText}
	if jobID != "" {
		if err := validID("job_id", jobID); err != nil {
			return nil, err
		}
		job, err := s.repo.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		req.JobTitle = job.Title
		req.JobDescription = job.Description
		req.Skills = job.Skills
	}

	if err := s.repo.SetResumeStatus(ctx, resume.ID, models.ResumeStatusAnalyzing); err != nil {
		return nil, err
	}

	analysis, err := s.llm.AnalyzeResume(ctx, req)
	if err != nil {
		slog.Error("Resume analysis failed", "error", err, "resume_id", resume.ID)
		if serr := s.repo.SetResumeStatus(ctx, resume.ID, models.ResumeStatusFailed); serr != nil {
			slog.Error("Failed to mark resume failed", "error", serr, "resume_id", resume.ID)
		}
		if errors.Is(err, ErrAIUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	analysis.JobID = jobID

	now := s.now()
	if err := s.repo.SaveResumeAnalysis(ctx, resume.ID, analysis, now); err != nil {
		return nil, err
	}
	resume.Status = models.ResumeStatusAnalyzed
	resume.Analysis = analysis
	resume.AnalyzedAt = &now
	return resume, nil
}
