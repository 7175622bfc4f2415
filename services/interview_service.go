package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prepmate/backend/export"
	"github.com/prepmate/backend/metrics"
	"github.com/prepmate/backend/models"
	"github.com/prepmate/backend/repository"
)

const (
	defaultQuestionCount = 5
	defaultMaxQuestions  = 10
)

type interviewStore interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetResume(ctx context.Context, id, userID string) (*models.Resume, error)
	GetInterviewer(ctx context.Context, id string) (*models.Interviewer, error)
	ListInterviewers(ctx context.Context) ([]models.Interviewer, error)
	CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error
	GetInterviewSessionWithDetails(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error)
	ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error)
	ListInterviewSessionsWithDetails(ctx context.Context, userID string) ([]models.InterviewSession, error)
	DeleteInterviewSession(ctx context.Context, sessionID string) error
	CreateAnswer(ctx context.Context, answer *models.InterviewAnswer, nextIndex int) error
	FinishInterviewSession(ctx context.Context, session *models.InterviewSession) error
	SaveInterviewFeedback(ctx context.Context, sessionID string, score float64, feedback *models.InterviewFeedback) error
	TouchInterviewSession(ctx context.Context, sessionID string) error
	ListIdleActiveSessions(ctx context.Context, cutoff time.Time) ([]models.InterviewSession, error)
}

// InterviewService owns the mock interview lifecycle. A nil LLM switches
// question generation and feedback to the offline fallbacks.
type InterviewService struct {
	repo         interviewStore
	llm          LLM
	speech       *SpeechService
	metrics      *metrics.Metrics
	cfg          InterviewConfig
	defaultVoice string
	now          func() time.Time
}

func NewInterviewService(repo interviewStore, llm LLM, speech *SpeechService, cfg InterviewConfig, defaultVoice string, m *metrics.Metrics) *InterviewService {
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = defaultMaxQuestions
	}
	return &InterviewService{
		repo:         repo,
		llm:          llm,
		speech:       speech,
		metrics:      m,
		cfg:          cfg,
		defaultVoice: defaultVoice,
		now:          time.Now,
	}
}

type StartInterviewRequest struct {
	Role          string `json:"role" validate:"max=255"`
	InterviewType string `json:"interview_type" validate:"omitempty,oneof=technical behavioral mixed"`
	Difficulty    string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	QuestionCount int    `json:"question_count" validate:"gte=0"`
	JobID         string `json:"job_id" validate:"omitempty,uuid"`
	ResumeID      string `json:"resume_id" validate:"omitempty,uuid"`
	InterviewerID string `json:"interviewer_id" validate:"omitempty,uuid"`
}

// AnswerInput is either a typed answer or recorded audio
type AnswerInput struct {
	SessionID       string
	QuestionID      string
	Text            string
	Audio           []byte
	AudioMIME       string
	DurationSeconds int
	Source          string
}

type AnswerResult struct {
	Answer       *models.InterviewAnswer   `json:"answer"`
	Feedback     *models.AnswerFeedback    `json:"feedback"`
	NextQuestion *models.InterviewQuestion `json:"next_question,omitempty"`
	Completed    bool                      `json:"completed"`
	Answered     int                       `json:"answered"`
	Total        int                       `json:"total"`
}

func (s *InterviewService) Start(ctx context.Context, userID string, req StartInterviewRequest) (*models.InterviewSession, error) {
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	if req.InterviewType == "" {
		req.InterviewType = models.InterviewTypeMixed
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	if req.QuestionCount == 0 {
		req.QuestionCount = defaultQuestionCount
	}
	if req.QuestionCount < 1 || req.QuestionCount > s.cfg.MaxQuestions {
		return nil, fmt.Errorf("%w: question_count must be between 1 and %d", ErrInvalidInput, s.cfg.MaxQuestions)
	}

	qreq := QuestionRequest{
		Role:          strings.TrimSpace(req.Role),
		InterviewType: req.InterviewType,
		Difficulty:    req.Difficulty,
		Count:         req.QuestionCount,
	}
	session := &models.InterviewSession{
		UserID:        userID,
		InterviewType: req.InterviewType,
		Difficulty:    req.Difficulty,
		Status:        models.SessionStatusActive,
		QuestionCount: req.QuestionCount,
		StartedAt:     s.now(),
	}

	if req.JobID != "" {
		job, err := s.repo.GetJob(ctx, req.JobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("%w: job", ErrNotFound)
		}
		session.JobID = &job.ID
		session.Job = job
		qreq.JobTitle = job.Title
		qreq.JobDescription = job.Description
		qreq.Skills = job.Skills
		if qreq.Role == "" {
			qreq.Role = job.Title
		}
	}
	if qreq.Role == "" {
		return nil, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	session.Role = qreq.Role

	if req.ResumeID != "" {
		resume, err := s.repo.GetResume(ctx, req.ResumeID, userID)
		if err != nil {
			return nil, err
		}
		if resume == nil {
			return nil, fmt.Errorf("%w: resume", ErrNotFound)
		}
		session.ResumeID = &resume.ID
		qreq.ResumeText = resume.ExtractedText
	}

	if req.InterviewerID != "" {
		iv, err := s.repo.GetInterviewer(ctx, req.InterviewerID)
		if err != nil {
			return nil, err
		}
		if iv == nil {
			return nil, fmt.Errorf("%w: interviewer", ErrNotFound)
		}
		session.InterviewerID = &iv.ID
		session.Interviewer = iv
		qreq.Interviewer = iv
	}
	session.VoiceID = voiceForInterviewer(session.Interviewer, s.defaultVoice)

	for i, q := range s.generateQuestions(ctx, qreq) {
		session.Questions = append(session.Questions, models.InterviewQuestion{
			Position:       i,
			Text:           q.Text,
			Category:       q.Category,
			ExpectedPoints: q.ExpectedPoints,
		})
	}

	if err := s.repo.CreateInterviewSession(ctx, session); err != nil {
		return nil, err
	}
	s.metrics.InterviewStarted()
	slog.Info("Interview started", "session_id", session.ID, "user_id", userID, "role", session.Role, "questions", len(session.Questions))
	return session, nil
}

// generateQuestions asks the LLM and tops up from the built-in bank when it fails or returns too few
func (s *InterviewService) generateQuestions(ctx context.Context, req QuestionRequest) []GeneratedQuestion {
	fallback := fallbackQuestions(req)
	if s.llm == nil {
		return fallback
	}

	questions, err := s.llm.GenerateQuestions(ctx, req)
	if err != nil {
		slog.Warn("Question generation failed, using fallback bank", "error", err, "role", req.Role)
		return fallback
	}
	for i := len(questions); i < req.Count; i++ {
		questions = append(questions, fallback[i])
	}
	return questions
}

// Get returns a session with questions and answers, or ErrNotFound
func (s *InterviewService) Get(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	if err := requireID("interview session", sessionID); err != nil {
		return nil, err
	}
	session, err := s.repo.GetInterviewSessionWithDetails(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: interview session", ErrNotFound)
	}
	return session, nil
}

func (s *InterviewService) List(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	return s.repo.ListInterviewSessions(ctx, userID)
}

func (s *InterviewService) Delete(ctx context.Context, userID, sessionID string) error {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return s.repo.DeleteInterviewSession(ctx, session.ID)
}

// Interviewers lists the active personas with their voice
func (s *InterviewService) Interviewers(ctx context.Context) ([]InterviewerView, error) {
	ivs, err := s.repo.ListInterviewers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]InterviewerView, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, InterviewerView{Interviewer: iv, VoiceID: PickDeterministicVoice(iv.Name, iv.Gender)})
	}
	return out, nil
}

type InterviewerView struct {
	models.Interviewer
	VoiceID string `json:"voice_id"`
}

// Touch records activity so the inactivity checker leaves the session alone
func (s *InterviewService) Touch(ctx context.Context, sessionID string) {
	if err := s.repo.TouchInterviewSession(ctx, sessionID); err != nil {
		slog.Warn("Failed to touch session", "error", err, "session_id", sessionID)
	}
}

func findQuestion(session *models.InterviewSession, questionID string) *models.InterviewQuestion {
	for i := range session.Questions {
		if session.Questions[i].ID == questionID {
			return &session.Questions[i]
		}
	}
	return nil
}

// SubmitAnswer stores one answer with feedback and returns the next question
func (s *InterviewService) SubmitAnswer(ctx context.Context, userID string, in AnswerInput) (*AnswerResult, error) {
	if in.SessionID == "" || in.QuestionID == "" {
		return nil, fmt.Errorf("%w: session_id and question_id are required", ErrInvalidInput)
	}
	if err := validID("session_id", in.SessionID); err != nil {
		return nil, err
	}
	if err := validID("question_id", in.QuestionID); err != nil {
		return nil, err
	}
	session, err := s.Get(ctx, userID, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionClosed
	}
	if s.cfg.TimeLimit > 0 && s.now().Sub(session.StartedAt) > s.cfg.TimeLimit {
		if err := s.finish(ctx, session); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: time limit reached", ErrSessionClosed)
	}

	question := findQuestion(session, in.QuestionID)
	if question == nil {
		return nil, fmt.Errorf("%w: question", ErrNotFound)
	}
	if question.Answer != nil {
		return nil, ErrAlreadyAnswered
	}

	transcript := strings.TrimSpace(in.Text)
	source := in.Source
	if len(in.Audio) > 0 {
		if s.llm == nil {
			return nil, ErrAIUnavailable
		}
		transcript, err = s.llm.Transcribe(ctx, in.Audio, in.AudioMIME)
		if err != nil {
			if !errors.Is(err, ErrAIUnavailable) {
				err = fmt.Errorf("%w: %v", ErrAIUnavailable, err)
			}
			return nil, err
		}
		transcript = strings.TrimSpace(transcript)
		source = models.AnswerSourceAudio
	}
	if source == "" {
		source = models.AnswerSourceText
	}
	if transcript == "" {
		return nil, fmt.Errorf("%w: answer is empty", ErrInvalidInput)
	}

	feedback := s.evaluate(ctx, session, question, transcript)

	answer := &models.InterviewAnswer{
		QuestionID:      question.ID,
		SessionID:       session.ID,
		Transcript:      transcript,
		Source:          source,
		DurationSeconds: in.DurationSeconds,
		Score:           feedback.Score,
		Feedback:        feedback,
	}

	question.Answer = answer
	next := session.NextQuestion()
	nextIndex := len(session.Questions)
	if next != nil {
		nextIndex = next.Position
	}

	if err := s.repo.CreateAnswer(ctx, answer, nextIndex); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyAnswered
		}
		return nil, err
	}
	s.metrics.AnswerSubmitted(source)

	return &AnswerResult{
		Answer:       answer,
		Feedback:     feedback,
		NextQuestion: next,
		Completed:    next == nil,
		Answered:     session.AnsweredCount(),
		Total:        len(session.Questions),
	}, nil
}

func (s *InterviewService) evaluate(ctx context.Context, session *models.InterviewSession, q *models.InterviewQuestion, transcript string) *models.AnswerFeedback {
	req := AnswerEvaluationRequest{
		Role:           session.Role,
		Difficulty:     session.Difficulty,
		Question:       q.Text,
		Category:       q.Category,
		ExpectedPoints: q.ExpectedPoints,
		Answer:         transcript,
		Interviewer:    session.Interviewer,
	}
	if s.llm != nil {
		fb, err := s.llm.EvaluateAnswer(ctx, req)
		if err == nil {
			return fb
		}
		slog.Warn("Answer evaluation failed, using heuristic feedback", "error", err, "session_id", session.ID)
	}
	return heuristicAnswerFeedback(req)
}

func (s *InterviewService) analyze(ctx context.Context, session *models.InterviewSession) *models.InterviewFeedback {
	if s.llm != nil && session.AnsweredCount() > 0 {
		fb, err := s.llm.AnalyzeInterview(ctx, session)
		if err == nil {
			return fb
		}
		slog.Warn("Interview analysis failed, using heuristic feedback", "error", err, "session_id", session.ID)
	}
	return heuristicInterviewFeedback(session)
}

// finish closes a session. With at least one answer it is completed and
// scored, otherwise abandoned.
func (s *InterviewService) finish(ctx context.Context, session *models.InterviewSession) error {
	status := models.SessionStatusAbandoned
	if session.AnsweredCount() > 0 {
		status = models.SessionStatusCompleted
	}
	return s.closeSession(ctx, session, status)
}

func (s *InterviewService) closeSession(ctx context.Context, session *models.InterviewSession, status string) error {
	now := s.now()
	session.EndedAt = &now
	session.Duration = int(now.Sub(session.StartedAt).Seconds())
	session.Status = status
	if status == models.SessionStatusCompleted {
		score := overallScore(session)
		session.OverallScore = &score
		session.Feedback = s.analyze(ctx, session)
	}

	if err := s.repo.FinishInterviewSession(ctx, session); err != nil {
		return err
	}
	s.metrics.InterviewEnded(status)
	return nil
}

// Complete ends an active session. Completing an already completed session
// returns it unchanged.
func (s *InterviewService) Complete(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionStatusCompleted:
		return session, nil
	case models.SessionStatusAbandoned:
		return nil, ErrSessionClosed
	}

	if err := s.closeSession(ctx, session, models.SessionStatusCompleted); err != nil {
		return nil, err
	}
	slog.Info("Interview completed", "session_id", session.ID, "score", *session.OverallScore, "duration", session.Duration)
	return session, nil
}

// End stops an active session early: completed when something was answered, abandoned otherwise
func (s *InterviewService) End(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return session, nil
	}
	if err := s.finish(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Analyze regenerates and stores the overall feedback of a session
func (s *InterviewService) Analyze(ctx context.Context, userID, sessionID string) (*models.InterviewFeedback, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AnsweredCount() == 0 {
		return nil, fmt.Errorf("%w: interview has no answers", ErrInvalidInput)
	}

	fb := s.analyze(ctx, session)
	if err := s.repo.SaveInterviewFeedback(ctx, session.ID, fb.OverallScore, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// QuestionAudio returns the spoken question in the session voice
func (s *InterviewService) QuestionAudio(ctx context.Context, userID, sessionID, questionID string) ([]byte, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	question := findQuestion(session, questionID)
	if question == nil {
		return nil, fmt.Errorf("%w: question", ErrNotFound)
	}
	return s.Speak(ctx, question.Text, session.VoiceID)
}

// Speak synthesizes text; ErrAIUnavailable when no TTS is configured
func (s *InterviewService) Speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	if s.speech == nil {
		return nil, ErrAIUnavailable
	}
	return s.speech.Speak(ctx, text, voiceID)
}

// Export writes the user's interview history as a workbook
func (s *InterviewService) Export(ctx context.Context, userID string, w io.Writer) error {
	sessions, err := s.repo.ListInterviewSessionsWithDetails(ctx, userID)
	if err != nil {
		return err
	}
	return export.InterviewHistory(w, sessions)
}

// ExpireIdle closes active sessions idle since before now minus the inactivity timeout
func (s *InterviewService) ExpireIdle(ctx context.Context) (int, error) {
	if s.cfg.InactivityTimeout <= 0 {
		return 0, nil
	}
	sessions, err := s.repo.ListIdleActiveSessions(ctx, s.now().Add(-s.cfg.InactivityTimeout))
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range sessions {
		session := &sessions[i]
		if err := s.finish(ctx, session); err != nil {
			slog.Error("Failed to close idle session", "error", err, "session_id", session.ID)
			continue
		}
		slog.Info("Closed inactive session", "session_id", session.ID, "status", session.Status)
		closed++
	}
	return closed, nil
}
