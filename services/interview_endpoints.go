package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prepmate/backend/models"
)

const defaultMaxAudioBytes = 10 << 20

type InterviewEndpoints struct {
	interviewService *InterviewService
	resumeEndpoints  *ResumeEndpoints
	authService      *AuthService
	maxAudioBytes    int64
}

type SubmitAnswerRequest struct {
	SessionID       string `json:"session_id" validate:"required,uuid"`
	QuestionID      string `json:"question_id" validate:"required,uuid"`
	Answer          string `json:"answer"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
}

type AnalyzeInterviewRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}

func NewInterviewEndpoints(interviewService *InterviewService, resumeEndpoints *ResumeEndpoints, authService *AuthService, maxAudioBytes int64) *InterviewEndpoints {
	if maxAudioBytes <= 0 {
		maxAudioBytes = defaultMaxAudioBytes
	}
	return &InterviewEndpoints{
		interviewService: interviewService,
		resumeEndpoints:  resumeEndpoints,
		authService:      authService,
		maxAudioBytes:    maxAudioBytes,
	}
}

// RegisterRoutes mounts /interviews, /interviewers and /ai. limit wraps the
// routes that call the LLM.
func (e *InterviewEndpoints) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = passthrough
	}
	r.Get("/interviewers", e.ListInterviewersHandler)

	r.Route("/interviews", func(r chi.Router) {
		r.Use(e.authService.Middleware)
		r.With(limit).Post("/start", e.StartHandler)
		r.With(limit).Post("/submit-answer", e.SubmitAnswerHandler)
		r.Get("/", e.ListHandler)
		r.Get("/export", e.ExportHandler)
		r.Get("/{id}", e.GetHandler)
		r.Delete("/{id}", e.DeleteHandler)
		r.Post("/{id}/complete", e.CompleteHandler)
		r.Get("/{id}/questions/{questionID}/audio", e.QuestionAudioHandler)
	})

	r.Route("/ai", func(r chi.Router) {
		r.Use(e.authService.Middleware)
		r.Use(limit)
		r.Post("/analyze-interview", e.AnalyzeHandler)
		if e.resumeEndpoints != nil {
			r.Post("/analyze-resume", e.resumeEndpoints.AnalyzeAliasHandler)
		}
	})
}

func passthrough(next http.Handler) http.Handler { return next }

func (e *InterviewEndpoints) ListInterviewersHandler(w http.ResponseWriter, r *http.Request) {
	interviewers, err := e.interviewService.Interviewers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"interviewers": interviewers})
}

func (e *InterviewEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req StartInterviewRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	session, err := e.interviewService.Start(r.Context(), user.ID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session":        session,
		"first_question": session.NextQuestion(),
		"message":        "Interview started",
	})
}

// SubmitAnswerHandler accepts JSON or a multipart form with an "audio" file
func (e *InterviewEndpoints) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var in AnswerInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, err := e.parseAudioAnswer(w, r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		in = parsed
	} else {
		var req SubmitAnswerRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		in = AnswerInput{
			SessionID:       req.SessionID,
			QuestionID:      req.QuestionID,
			Text:            req.Answer,
			DurationSeconds: req.DurationSeconds,
			Source:          models.AnswerSourceText,
		}
	}

	result, err := e.interviewService.SubmitAnswer(r.Context(), user.ID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *InterviewEndpoints) parseAudioAnswer(w http.ResponseWriter, r *http.Request) (AnswerInput, error) {
	var in AnswerInput
	r.Body = http.MaxBytesReader(w, r.Body, e.maxAudioBytes+multipartOverhead)
	if err := r.ParseMultipartForm(e.maxAudioBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return in, ErrFileTooLarge
		}
		return in, fmt.Errorf("%w: invalid multipart form", ErrInvalidInput)
	}
	defer r.MultipartForm.RemoveAll()

	in.SessionID = r.FormValue("session_id")
	in.QuestionID = r.FormValue("question_id")
	in.Text = r.FormValue("answer")
	in.Source = models.AnswerSourceText
	if v := r.FormValue("duration_seconds"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			return in, fmt.Errorf("%w: duration_seconds must be a non-negative integer", ErrInvalidInput)
		}
		in.DurationSeconds = d
	}

	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, fmt.Errorf("%w: invalid audio upload", ErrInvalidInput)
	}
	defer file.Close()

	if header.Size > e.maxAudioBytes {
		return in, ErrFileTooLarge
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, e.maxAudioBytes+1)); err != nil {
		return in, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(buf.Len()) > e.maxAudioBytes {
		return in, ErrFileTooLarge
	}
	in.Audio = buf.Bytes()
	in.AudioMIME = header.Header.Get("Content-Type")
	if i := strings.Index(in.AudioMIME, ";"); i >= 0 {
		in.AudioMIME = in.AudioMIME[:i]
	}
	return in, nil
}

func (e *InterviewEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	sessions, err := e.interviewService.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (e *InterviewEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	session, err := e.interviewService.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *InterviewEndpoints) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if err := e.interviewService.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *InterviewEndpoints) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	session, err := e.interviewService.Complete(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *InterviewEndpoints) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req AnalyzeInterviewRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	feedback, err := e.interviewService.Analyze(r.Context(), user.ID, req.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": req.SessionID,
		"feedback":   feedback,
	})
}

func (e *InterviewEndpoints) QuestionAudioHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	audio, err := e.interviewService.QuestionAudio(r.Context(), user.ID, chi.URLParam(r, "id"), chi.URLParam(r, "questionID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// ExportHandler buffers the workbook so a failure can still produce a JSON error
func (e *InterviewEndpoints) ExportHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var buf bytes.Buffer
	if err := e.interviewService.Export(r.Context(), user.ID, &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}

	name := fmt.Sprintf("interviews-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
