package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepmate/backend/metrics"
	"github.com/prepmate/backend/repository"
	"github.com/prepmate/backend/voice"
	ws "github.com/prepmate/backend/websocket"
)

// Version is reported by GET /api/ and the version command
var Version = "1.0.0"

// Server holds all server dependencies
type Server struct {
	config  *Config
	repo    *repository.GORMRepository
	pool    *pgxpool.Pool
	metrics *metrics.Metrics

	geminiService    *GeminiService
	speechService    *SpeechService
	authService      *AuthService
	interviewService *InterviewService
	timeoutService   *SessionTimeoutService
	limiter          *LimiterManager
	wsHub            *ws.Hub

	authEndpoints      *AuthEndpoints
	jobEndpoints       *JobEndpoints
	resumeEndpoints    *ResumeEndpoints
	interviewEndpoints *InterviewEndpoints
	userEndpoints      *UserEndpoints
	websocketHandler   *WebSocketHandler
}

// NewServer wires a server around an open repository. pool is only used for health checks and may be nil.
func NewServer(config *Config, repo *repository.GORMRepository, pool *pgxpool.Pool) *Server {
	return &Server{
		config: config,
		repo:   repo,
		pool:   pool,
	}
}

func (c VoiceConfig) detectorConfig() voice.Config {
	cfg := voice.DefaultConfig()
	if c.SampleInterval > 0 {
		cfg.SampleInterval = c.SampleInterval
	}
	if c.Threshold != nil {
		cfg.Threshold = *c.Threshold
	}
	if c.SilenceDuration > 0 {
		cfg.SilenceDuration = c.SilenceDuration
	}
	if c.MinSpeech > 0 {
		cfg.MinSpeech = c.MinSpeech
	}
	return cfg
}

// InitializeServices builds every service; ctx bounds background workers
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("repository not configured")
	}
	if s.config.JWT.Secret == "" {
		return errors.New("JWT secret not configured")
	}

	if s.config.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	var llm LLM
	if s.config.AI.GeminiAPIKey != "" {
		gemini, err := NewGeminiService(ctx, s.config.AI, s.config.Breaker, s.metrics)
		if err != nil {
			slog.Error("Gemini unavailable, using offline fallbacks", "error", err)
		} else {
			s.geminiService = gemini
			llm = gemini
			slog.Info("Gemini service initialized", "model", s.config.AI.GeminiModel)
		}
	} else {
		slog.Warn("Gemini API key not configured, using offline fallbacks")
	}

	var tts TTS
	if s.config.AI.ElevenLabsKey != "" {
		tts = NewElevenLabsService(s.config.AI)
		slog.Info("ElevenLabs service initialized")
	}
	if tts != nil {
		s.speechService = NewSpeechService(tts, NewAudioCache(s.config.Storage.AudioCacheDir), s.metrics)
	}

	s.authService = NewAuthService(s.repo, s.config.JWT, s.config.IsProduction())
	s.authEndpoints = NewAuthEndpoints(s.authService)
	s.jobEndpoints = NewJobEndpoints(s.repo, s.authService)
	s.userEndpoints = NewUserEndpoints(s.repo, s.authService)

	resumeService := NewResumeService(s.repo, llm, s.config.Storage, s.metrics)
	s.resumeEndpoints = NewResumeEndpoints(resumeService, s.authService)

	s.interviewService = NewInterviewService(s.repo, llm, s.speechService, s.config.Interview, s.config.AI.DefaultVoiceID, s.metrics)
	s.interviewEndpoints = NewInterviewEndpoints(s.interviewService, s.resumeEndpoints, s.authService, s.config.Storage.MaxAudioBytes)

	s.timeoutService = NewSessionTimeoutService(s.interviewService, s.repo, s.config.Interview)
	go s.timeoutService.Run(ctx)

	if s.config.RateLimit.Enabled {
		s.limiter = NewLimiterManager(s.config.RateLimit.RequestsPerMinute, s.config.RateLimit.Burst)
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run(ctx)
	s.websocketHandler = NewWebSocketHandler(ctx, s.wsHub, s.interviewService, s.timeoutService, s.authService,
		s.config.Voice.detectorConfig(), s.config.WebSocket.AllowedOrigins, s.metrics)

	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if origins := ParseOrigins(s.config.WebSocket.AllowedOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.healthHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.apiHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			s.authEndpoints.RegisterRoutes(r)
		})
		s.jobEndpoints.RegisterRoutes(r)
		s.resumeEndpoints.RegisterRoutes(r)
		s.interviewEndpoints.RegisterRoutes(r, s.rateLimit)
		s.websocketHandler.RegisterRoutes(r)
		s.userEndpoints.RegisterRoutes(r)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", port, "environment", s.config.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.limiter != nil {
		s.limiter.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	slog.Info("Server exited")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pool.Ping(ctx); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}

	body := map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"ai": map[string]interface{}{
			"llm_configured": s.geminiService != nil,
			"tts_configured": s.speechService != nil,
			"breaker":        s.geminiService.BreakerState(),
		},
	}
	if s.wsHub != nil {
		body["live_sessions"] = s.wsHub.Count()
	}
	if s.speechService != nil {
		if stats, err := s.speechService.CacheStats(); err == nil {
			body["audio_cache"] = stats
		} else {
			slog.Warn("Audio cache stats unavailable", "error", err)
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
	slog.Debug("Health check", "status", status, "database", dbStatus)
}

func (s *Server) apiHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "PrepMate API",
		"version": Version,
	})
}
