package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultCheckInterval = 30 * time.Second

type tokenCleaner interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// SessionTimeoutService tracks live interview connections and periodically
// closes sessions nobody has touched for the inactivity timeout
type SessionTimeoutService struct {
	interviews     *InterviewService
	tokens         tokenCleaner
	interval       time.Duration
	maxEmpty       int
	activeSessions map[string]*ActiveSession
	mutex          sync.RWMutex
}

type ActiveSession struct {
	SessionID          string
	UserID             string
	LastActivity       time.Time
	EmptyResponseCount int
	connections        int
}

func NewSessionTimeoutService(interviews *InterviewService, tokens tokenCleaner, cfg InterviewConfig) *SessionTimeoutService {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	maxEmpty := cfg.MaxEmptyResponses
	if maxEmpty <= 0 {
		maxEmpty = 3
	}
	return &SessionTimeoutService{
		interviews:     interviews,
		tokens:         tokens,
		interval:       interval,
		maxEmpty:       maxEmpty,
		activeSessions: make(map[string]*ActiveSession),
	}
}

// MaxEmptyResponses is the strike count that ends a live session
func (s *SessionTimeoutService) MaxEmptyResponses() int {
	return s.maxEmpty
}

func (s *SessionTimeoutService) RegisterSession(sessionID, userID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// a reconnect keeps the strike count
	session, exists := s.activeSessions[sessionID]
	if !exists {
		session = &ActiveSession{SessionID: sessionID, UserID: userID}
		s.activeSessions[sessionID] = session
	}
	session.LastActivity = time.Now()
	session.connections++
	slog.Info("Session registered for timeout tracking", "session_id", sessionID, "user_id", userID)
}

// UpdateActivity refreshes the in-memory timestamp and the stored session
func (s *SessionTimeoutService) UpdateActivity(ctx context.Context, sessionID string) {
	s.mutex.Lock()
	session, exists := s.activeSessions[sessionID]
	if exists {
		session.LastActivity = time.Now()
	}
	s.mutex.Unlock()

	if s.interviews != nil {
		s.interviews.Touch(ctx, sessionID)
	}
}

// EndSession drops tracking once the last connection for the session closes
func (s *SessionTimeoutService) EndSession(sessionID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.activeSessions[sessionID]
	if !exists {
		return
	}
	session.connections--
	if session.connections <= 0 {
		delete(s.activeSessions, sessionID)
		slog.Info("Session removed from timeout tracking", "session_id", sessionID)
	}
}

// IncrementEmptyResponse records an unintelligible turn and returns the new count
func (s *SessionTimeoutService) IncrementEmptyResponse(sessionID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, exists := s.activeSessions[sessionID]; exists {
		session.EmptyResponseCount++
		slog.Info("Empty response recorded", "session_id", sessionID, "count", session.EmptyResponseCount)
		return session.EmptyResponseCount
	}
	return 0
}

func (s *SessionTimeoutService) ResetEmptyResponse(sessionID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, exists := s.activeSessions[sessionID]; exists && session.EmptyResponseCount != 0 {
		session.EmptyResponseCount = 0
		slog.Debug("Empty response counter reset", "session_id", sessionID)
	}
}

// Run checks for timeouts until ctx is cancelled
func (s *SessionTimeoutService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTimeouts(ctx)
		}
	}
}

func (s *SessionTimeoutService) checkTimeouts(ctx context.Context) {
	if s.interviews != nil {
		closed, err := s.interviews.ExpireIdle(ctx)
		if err != nil {
			slog.Error("Inactivity check failed", "error", err)
		} else if closed > 0 {
			slog.Info("Closed inactive sessions", "count", closed)
		}
	}

	if s.tokens != nil {
		removed, err := s.tokens.DeleteExpiredTokens(ctx, time.Now())
		if err != nil {
			slog.Error("Failed to delete expired tokens", "error", err)
		} else if removed > 0 {
			slog.Info("Deleted expired tokens", "count", removed)
		}
	}
}
