package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/prepmate/backend/models"
)

const resumeText = "Jane Doe\nBackend Engineer\nGo, PostgreSQL, Kubernetes\n"

func newTestResumeService(t *testing.T, store *memStore, llm LLM, maxBytes int64) *ResumeService {
	t.Helper()
	return NewResumeService(store, llm, StorageConfig{UploadDir: t.TempDir(), MaxResumeBytes: maxBytes}, nil)
}

func TestResumeUpload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	job := &models.Job{Title: "Backend Engineer"}
	_ = store.CreateJob(ctx, job)
	svc := newTestResumeService(t, store, nil, 1024)

	tests := []struct {
		name     string
		fileName string
		content  string
		jobID    string
		wantErr  error
	}{
		{name: "text resume", fileName: "jane.txt", content: resumeText},
		{name: "with target job", fileName: "jane.txt", content: resumeText, jobID: job.ID},
		{name: "unknown target job", fileName: "jane.txt", content: resumeText, jobID: "00000000-0000-4000-8000-000000000999", wantErr: ErrNotFound},
		{name: "malformed target job", fileName: "jane.txt", content: resumeText, jobID: "missing", wantErr: ErrInvalidInput},
		{name: "unsupported extension", fileName: "jane.exe", content: "MZ\x90\x00", wantErr: ErrUnsupportedFile},
		{name: "content does not match extension", fileName: "jane.pdf", content: resumeText, wantErr: ErrUnsupportedFile},
		{name: "too large", fileName: "jane.txt", content: strings.Repeat("a", 2048), wantErr: ErrFileTooLarge},
		{name: "empty", fileName: "jane.txt", content: "", wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resume, err := svc.Upload(ctx, testUser, tt.fileName, strings.NewReader(tt.content), tt.jobID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if resume.MimeType != "text/plain" || resume.SizeBytes != int64(len(tt.content)) {
				t.Errorf("mime=%s size=%d", resume.MimeType, resume.SizeBytes)
			}
			if !strings.HasPrefix(resume.ExtractedText, "Jane Doe") {
				t.Errorf("extracted = %q", resume.ExtractedText)
			}
			if resume.Status != models.ResumeStatusUploaded {
				t.Errorf("status = %s", resume.Status)
			}
			if _, err := os.Stat(resume.StoragePath); err != nil {
				t.Errorf("stored file missing: %v", err)
			}
			if tt.jobID != "" && (resume.TargetJobID == nil || *resume.TargetJobID != tt.jobID) {
				t.Errorf("target job not recorded")
			}
		})
	}
}

func TestResumeUploadStoresValidUTF8(t *testing.T) {
	svc := newTestResumeService(t, newMemStore(), nil, 0)
	content := "Jos\xe9 Garc\xeda\nBackend engineer, Go and Postgres\n"

	resume, err := svc.Upload(context.Background(), testUser, "jose.txt", strings.NewReader(content), "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !utf8.ValidString(resume.ExtractedText) || strings.ContainsRune(resume.ExtractedText, 0) {
		t.Fatalf("extracted text not storable: %q", resume.ExtractedText)
	}
	if resume.ExtractedText != "Jos Garca\nBackend engineer, Go and Postgres" {
		t.Errorf("extracted = %q", resume.ExtractedText)
	}
}

func TestResumeDeleteRemovesFile(t *testing.T) {
	ctx := context.Background()
	svc := newTestResumeService(t, newMemStore(), nil, 0)
	resume, err := svc.Upload(ctx, testUser, "cv.txt", strings.NewReader(resumeText), "")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "intruder", resume.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete by another user: %v", err)
	}
	if err := svc.Delete(ctx, testUser, resume.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(resume.StoragePath); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
}

func TestResumeAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("no model", func(t *testing.T) {
		svc := newTestResumeService(t, newMemStore(), nil, 0)
		resume, _ := svc.Upload(ctx, testUser, "cv.txt", strings.NewReader(resumeText), "")
		if _, err := svc.Analyze(ctx, testUser, resume.ID, ""); !errors.Is(err, ErrAIUnavailable) {
			t.Errorf("expected ErrAIUnavailable, got %v", err)
		}
	})

	t.Run("analyzed against target job", func(t *testing.T) {
		store := newMemStore()
		job := &models.Job{Title: "Backend Engineer", Skills: []string{"go"}}
		_ = store.CreateJob(ctx, job)
		svc := newTestResumeService(t, store, &stubLLM{}, 0)
		resume, _ := svc.Upload(ctx, testUser, "cv.txt", strings.NewReader(resumeText), job.ID)

		got, err := svc.Analyze(ctx, testUser, resume.ID, "")
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if got.Status != models.ResumeStatusAnalyzed || got.Analysis == nil || got.AnalyzedAt == nil {
			t.Fatalf("resume = %+v", got)
		}
		if got.Analysis.JobID != job.ID || got.Analysis.OverallScore != 72 {
			t.Errorf("analysis = %+v", got.Analysis)
		}
	})

	t.Run("model failure marks resume failed", func(t *testing.T) {
		store := newMemStore()
		svc := newTestResumeService(t, store, &stubLLM{failAll: true}, 0)
		resume, _ := svc.Upload(ctx, testUser, "cv.txt", strings.NewReader(resumeText), "")

		if _, err := svc.Analyze(ctx, testUser, resume.ID, ""); !errors.Is(err, ErrAIUnavailable) {
			t.Fatalf("expected ErrAIUnavailable, got %v", err)
		}
		stored, _ := store.GetResume(ctx, resume.ID, testUser)
		if stored.Status != models.ResumeStatusFailed {
			t.Errorf("status = %s, want failed", stored.Status)
		}
	})

	t.Run("nothing extracted", func(t *testing.T) {
		store := newMemStore()
		svc := newTestResumeService(t, store, &stubLLM{}, 0)
		r := &models.Resume{UserID: testUser, FileName: "scan.pdf", Status: models.ResumeStatusUploaded}
		_ = store.CreateResume(ctx, r)
		if _, err := svc.Analyze(ctx, testUser, r.ID, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func multipartUpload(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("resume", fileName)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestResumeUploadHandler(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(store)
	_, token := signedUpUser(t, auth, "upload@example.com")

	r := chi.NewRouter()
	NewResumeEndpoints(newTestResumeService(t, store, nil, 256), auth).RegisterRoutes(r)

	tests := []struct {
		name     string
		fileName string
		content  string
		status   int
	}{
		{name: "accepted", fileName: "cv.txt", content: resumeText, status: http.StatusCreated},
		{name: "too large", fileName: "cv.txt", content: strings.Repeat("x", 1024), status: http.StatusRequestEntityTooLarge},
		{name: "unsupported", fileName: "cv.exe", content: "MZ\x90\x00\x03", status: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.fileName, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/resumes/", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status == http.StatusCreated {
				var resume models.Resume
				if err := json.NewDecoder(rec.Body).Decode(&resume); err != nil {
					t.Fatal(err)
				}
				if resume.ID == "" || resume.FileName != "cv.txt" {
					t.Errorf("resume = %+v", resume)
				}
			}
		})
	}

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("target_job_id", "")
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/resumes/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		body, contentType := multipartUpload(t, "cv.txt", resumeText)
		req := httptest.NewRequest(http.MethodPost, "/resumes/", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}
