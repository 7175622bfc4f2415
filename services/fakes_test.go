package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prepmate/backend/models"
	"github.com/prepmate/backend/repository"
)

// castUUID mimics Postgres comparing a malformed string to a uuid column
func castUUID(id string) error {
	if uuid.Validate(id) != nil {
		return &pgconn.PgError{Code: "22P02", Message: fmt.Sprintf("invalid input syntax for type uuid: %q", id)}
	}
	return nil
}

// memStore is an in-memory stand-in for the GORM repository
type memStore struct {
	mu           sync.Mutex
	seq          int
	users        map[string]*models.User
	refresh      map[string]*models.RefreshToken
	permanent    map[string]*models.PermanentToken
	interviewers map[string]*models.Interviewer
	companies    map[string]*models.Company
	jobs         map[string]*models.Job
	resumes      map[string]*models.Resume
	sessions     map[string]*models.InterviewSession
	saved        map[string]map[string]bool
	touched      map[string]time.Time
	finished     []string
	purged       int
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*models.User{},
		refresh:      map[string]*models.RefreshToken{},
		permanent:    map[string]*models.PermanentToken{},
		interviewers: map[string]*models.Interviewer{},
		companies:    map[string]*models.Company{},
		jobs:         map[string]*models.Job{},
		resumes:      map[string]*models.Resume{},
		sessions:     map[string]*models.InterviewSession{},
		saved:        map[string]map[string]bool{},
		touched:      map[string]time.Time{},
	}
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
}

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = m.nextID()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.ID = m.nextID()
	m.refresh[token.Token] = token
	return nil
}

func (m *memStore) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.refresh[token]; ok && t.ExpiresAt.After(time.Now()) {
		return t, nil
	}
	return nil, nil
}

func (m *memStore) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.ID = m.nextID()
	m.permanent[token.Token] = token
	return nil
}

func (m *memStore) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.permanent[token]; ok && t.ExpiresAt.After(time.Now()) {
		return t, nil
	}
	return nil, nil
}

func (m *memStore) DeleteAllUserTokens(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.refresh {
		if t.UserID == userID {
			delete(m.refresh, k)
		}
	}
	for k, t := range m.permanent {
		if t.UserID == userID {
			delete(m.permanent, k)
		}
	}
	return nil
}

func (m *memStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.refresh {
		if t.ExpiresAt.Before(now) {
			delete(m.refresh, k)
			n++
		}
	}
	m.purged += int(n)
	return n, nil
}

func (m *memStore) GetInterviewerByName(ctx context.Context, name string) (*models.Interviewer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iv := range m.interviewers {
		if iv.Name == name {
			return iv, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateInterviewer(ctx context.Context, iv *models.Interviewer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv.ID = m.nextID()
	m.interviewers[iv.ID] = iv
	return nil
}

func (m *memStore) GetInterviewer(ctx context.Context, id string) (*models.Interviewer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interviewers[id], nil
}

func (m *memStore) ListInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Interviewer
	for _, iv := range m.interviewers {
		out = append(out, *iv)
	}
	return out, nil
}

func (m *memStore) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateCompany(ctx context.Context, c *models.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID()
	m.companies[c.ID] = c
	return nil
}

func (m *memStore) CreateJob(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = m.nextID()
	m.jobs[job.ID] = job
	return nil
}

func (m *memStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id], nil
}

func (m *memStore) SearchJobs(ctx context.Context, f models.JobFilter) ([]models.Job, int64, error) {
	if f.CompanyID != "" {
		if err := castUUID(f.CompanyID); err != nil {
			return nil, 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Job
	for _, j := range m.jobs {
		if f.Query != "" && !strings.Contains(strings.ToLower(j.Title), strings.ToLower(f.Query)) {
			continue
		}
		if f.Remote != nil && j.Remote != *f.Remote {
			continue
		}
		all = append(all, *j)
	}
	sort.Slice(all, func(i, k int) bool { return all[i].PostedAt.After(all[k].PostedAt) })
	total := int64(len(all))
	start := f.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + f.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memStore) SaveJob(ctx context.Context, userID, jobID string) error {
	if err := castUUID(jobID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved[userID] == nil {
		m.saved[userID] = map[string]bool{}
	}
	m.saved[userID][jobID] = true
	return nil
}

func (m *memStore) UnsaveJob(ctx context.Context, userID, jobID string) error {
	if err := castUUID(jobID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved[userID], jobID)
	return nil
}

func (m *memStore) ListSavedJobs(ctx context.Context, userID string) ([]models.SavedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SavedJob
	for jobID := range m.saved[userID] {
		out = append(out, models.SavedJob{UserID: userID, JobID: jobID, Job: m.jobs[jobID]})
	}
	return out, nil
}

func (m *memStore) ListCompanies(ctx context.Context, query string) ([]models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Company
	for _, c := range m.companies {
		if query == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.companies[id], nil
}

func (m *memStore) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.UserStats{SavedJobs: int64(len(m.saved[userID]))}
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		stats.TotalInterviews++
		if s.Status == models.SessionStatusCompleted {
			stats.CompletedInterviews++
		}
	}
	for _, r := range m.resumes {
		if r.UserID == userID {
			stats.TotalResumes++
		}
	}
	return stats, nil
}

func (m *memStore) UpdateUserProfile(ctx context.Context, userID, fullName, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return errors.New("user missing")
	}
	u.FullName = fullName
	u.AvatarURL = avatarURL
	return nil
}

func (m *memStore) CreateResume(ctx context.Context, r *models.Resume) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID()
	cp := *r
	m.resumes[r.ID] = &cp
	return nil
}

func (m *memStore) GetResume(ctx context.Context, id, userID string) (*models.Resume, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok || r.UserID != userID {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListResumes(ctx context.Context, userID string) ([]models.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Resume
	for _, r := range m.resumes {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) SetResumeStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.resumes[id]; ok {
		r.Status = status
	}
	return nil
}

func (m *memStore) SaveResumeAnalysis(ctx context.Context, id string, a *models.ResumeAnalysis, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok {
		return errors.New("resume missing")
	}
	r.Analysis = a
	r.AnalyzedAt = &at
	r.Status = models.ResumeStatusAnalyzed
	return nil
}

func (m *memStore) DeleteResume(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resumes, id)
	return nil
}

// copySession returns a detached copy so callers can mutate answers freely
func copySession(s *models.InterviewSession) *models.InterviewSession {
	cp := *s
	cp.Questions = make([]models.InterviewQuestion, len(s.Questions))
	copy(cp.Questions, s.Questions)
	return &cp
}

func (m *memStore) CreateInterviewSession(ctx context.Context, s *models.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID()
	for i := range s.Questions {
		s.Questions[i].ID = m.nextID()
		s.Questions[i].SessionID = s.ID
	}
	m.sessions[s.ID] = copySession(s)
	m.touched[s.ID] = s.StartedAt
	return nil
}

func (m *memStore) GetInterviewSessionWithDetails(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error) {
	if err := castUUID(sessionID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	return copySession(s), nil
}

func (m *memStore) ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InterviewSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

func (m *memStore) ListInterviewSessionsWithDetails(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	return m.ListInterviewSessions(ctx, userID)
}

func (m *memStore) DeleteInterviewSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *memStore) CreateAnswer(ctx context.Context, answer *models.InterviewAnswer, nextIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[answer.SessionID]
	if !ok {
		return errors.New("session missing")
	}
	for i := range s.Questions {
		if s.Questions[i].ID == answer.QuestionID {
			if s.Questions[i].Answer != nil {
				return repository.ErrDuplicate
			}
			answer.ID = m.nextID()
			cp := *answer
			s.Questions[i].Answer = &cp
			s.CurrentIndex = nextIndex
			return nil
		}
	}
	return errors.New("question missing")
}

func (m *memStore) FinishInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[session.ID]
	if !ok {
		return errors.New("session missing")
	}
	s.Status = session.Status
	s.EndedAt = session.EndedAt
	s.Duration = session.Duration
	s.OverallScore = session.OverallScore
	s.Feedback = session.Feedback
	m.finished = append(m.finished, session.ID)
	return nil
}

func (m *memStore) SaveInterviewFeedback(ctx context.Context, sessionID string, score float64, fb *models.InterviewFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return errors.New("session missing")
	}
	s.OverallScore = &score
	s.Feedback = fb
	return nil
}

func (m *memStore) TouchInterviewSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[sessionID] = time.Now()
	return nil
}

func (m *memStore) ListIdleActiveSessions(ctx context.Context, cutoff time.Time) ([]models.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InterviewSession
	for id, s := range m.sessions {
		if s.Status == models.SessionStatusActive && m.touched[id].Before(cutoff) {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

// stubLLM returns canned responses; failAll makes every call fail
type stubLLM struct {
	questions  []GeneratedQuestion
	score      float64
	transcript string
	failAll    bool
	calls      int
}

var errStub = errors.New("model unavailable")

func (l *stubLLM) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]GeneratedQuestion, error) {
	l.calls++
	if l.failAll {
		return nil, errStub
	}
	return l.questions, nil
}

func (l *stubLLM) EvaluateAnswer(ctx context.Context, req AnswerEvaluationRequest) (*models.AnswerFeedback, error) {
	l.calls++
	if l.failAll {
		return nil, errStub
	}
	return &models.AnswerFeedback{Score: l.score, Summary: "ok", Generated: true}, nil
}

func (l *stubLLM) AnalyzeInterview(ctx context.Context, session *models.InterviewSession) (*models.InterviewFeedback, error) {
	l.calls++
	if l.failAll {
		return nil, errStub
	}
	fb := &models.InterviewFeedback{Summary: "solid", Generated: true}
	normalizeInterviewFeedback(fb, session)
	return fb, nil
}

func (l *stubLLM) AnalyzeResume(ctx context.Context, req ResumeAnalysisRequest) (*models.ResumeAnalysis, error) {
	l.calls++
	if l.failAll {
		return nil, errStub
	}
	return &models.ResumeAnalysis{OverallScore: 72, ATSScore: 64, Summary: "good"}, nil
}

func (l *stubLLM) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	l.calls++
	if l.failAll {
		return "", errStub
	}
	return l.transcript, nil
}
