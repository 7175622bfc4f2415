package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Storage   StorageConfig
	Interview InterviewConfig
	Voice     VoiceConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	LogLevel    string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type AIConfig struct {
	GeminiAPIKey    string
	GeminiModel     string
	ElevenLabsKey   string
	ElevenLabsModel string
	DefaultVoiceID  string
	RequestTimeout  time.Duration
}

type JWTConfig struct {
	Secret          string
	AccessExpiry    time.Duration
	RefreshExpiry   time.Duration
	PermanentExpiry time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type StorageConfig struct {
	UploadDir      string
	AudioCacheDir  string
	MaxResumeBytes int64
	MaxAudioBytes  int64
}

type InterviewConfig struct {
	MaxQuestions      int
	InactivityTimeout time.Duration
	TimeLimit         time.Duration
	CheckInterval     time.Duration
	MaxEmptyResponses int
}

// VoiceConfig overrides the turn detector defaults. Zero durations and a nil
// threshold keep the default; 0 dBFS is a valid threshold.
type VoiceConfig struct {
	SampleInterval  time.Duration
	Threshold       *float64
	SilenceDuration time.Duration
	MinSpeech       time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

type MetricsConfig struct {
	Enabled bool
}

// IsProduction reports whether cookies must be marked Secure
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.request_timeout", "30s")
	viper.SetDefault("elevenlabs.api_key", "")
	viper.SetDefault("elevenlabs.model", "eleven_turbo_v2")
	viper.SetDefault("elevenlabs.default_voice", defaultVoiceID)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("jwt.permanent_expiry", "720h")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("storage.upload_dir", "./uploads")
	viper.SetDefault("storage.audio_cache_dir", "./audio_cache")
	viper.SetDefault("storage.max_resume_bytes", 5<<20)
	viper.SetDefault("storage.max_audio_bytes", 10<<20)
	viper.SetDefault("interview.max_questions", 10)
	viper.SetDefault("interview.inactivity_timeout", "30m")
	viper.SetDefault("interview.time_limit", "45m")
	viper.SetDefault("interview.check_interval", "30s")
	viper.SetDefault("interview.max_empty_responses", 3)
	viper.SetDefault("voice.sample_interval", "100ms")
	viper.SetDefault("voice.threshold_dbfs", -50.0)
	viper.SetDefault("voice.silence_duration", "1500ms")
	viper.SetDefault("voice.min_speech", "300ms")
	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.requests_per_minute", 60)
	viper.SetDefault("ratelimit.burst", 10)
	viper.SetDefault("breaker.enabled", true)
	viper.SetDefault("breaker.max_requests", 3)
	viper.SetDefault("breaker.interval", "60s")
	viper.SetDefault("breaker.timeout", "30s")
	viper.SetDefault("breaker.min_requests", 5)
	viper.SetDefault("breaker.failure_threshold", 0.6)
	viper.SetDefault("metrics.enabled", true)

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.environment", "ENVIRONMENT")
	viper.BindEnv("server.log_level", "LOG_LEVEL")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("ai.request_timeout", "AI_REQUEST_TIMEOUT")
	viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	viper.BindEnv("elevenlabs.model", "ELEVENLABS_MODEL")
	viper.BindEnv("elevenlabs.default_voice", "ELEVENLABS_DEFAULT_VOICE")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.access_expiry", "JWT_ACCESS_EXPIRY")
	viper.BindEnv("jwt.refresh_expiry", "JWT_REFRESH_EXPIRY")
	viper.BindEnv("jwt.permanent_expiry", "JWT_PERMANENT_EXPIRY")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("storage.upload_dir", "UPLOAD_DIR")
	viper.BindEnv("storage.audio_cache_dir", "AUDIO_CACHE_DIR")
	viper.BindEnv("storage.max_resume_bytes", "MAX_RESUME_BYTES")
	viper.BindEnv("storage.max_audio_bytes", "MAX_AUDIO_BYTES")
	viper.BindEnv("interview.max_questions", "INTERVIEW_MAX_QUESTIONS")
	viper.BindEnv("interview.inactivity_timeout", "INTERVIEW_INACTIVITY_TIMEOUT")
	viper.BindEnv("interview.time_limit", "INTERVIEW_TIME_LIMIT")
	viper.BindEnv("interview.check_interval", "INTERVIEW_CHECK_INTERVAL")
	viper.BindEnv("interview.max_empty_responses", "INTERVIEW_MAX_EMPTY_RESPONSES")
	viper.BindEnv("voice.sample_interval", "VOICE_SAMPLE_INTERVAL")
	viper.BindEnv("voice.threshold_dbfs", "VOICE_THRESHOLD_DBFS")
	viper.BindEnv("voice.silence_duration", "VOICE_SILENCE_DURATION")
	viper.BindEnv("voice.min_speech", "VOICE_MIN_SPEECH")
	viper.BindEnv("ratelimit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("ratelimit.requests_per_minute", "RATE_LIMIT_REQUESTS_PER_MINUTE")
	viper.BindEnv("ratelimit.burst", "RATE_LIMIT_BURST")
	viper.BindEnv("breaker.enabled", "BREAKER_ENABLED")
	viper.BindEnv("breaker.max_requests", "BREAKER_MAX_REQUESTS")
	viper.BindEnv("breaker.interval", "BREAKER_INTERVAL")
	viper.BindEnv("breaker.timeout", "BREAKER_TIMEOUT")
	viper.BindEnv("breaker.min_requests", "BREAKER_MIN_REQUESTS")
	viper.BindEnv("breaker.failure_threshold", "BREAKER_FAILURE_THRESHOLD")
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")

	var threshold *float64
	if viper.IsSet("voice.threshold_dbfs") {
		v := viper.GetFloat64("voice.threshold_dbfs")
		threshold = &v
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Environment: viper.GetString("server.environment"),
			LogLevel:    viper.GetString("server.log_level"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		AI: AIConfig{
			GeminiAPIKey:    viper.GetString("gemini.api_key"),
			GeminiModel:     viper.GetString("gemini.model"),
			ElevenLabsKey:   viper.GetString("elevenlabs.api_key"),
			ElevenLabsModel: viper.GetString("elevenlabs.model"),
			DefaultVoiceID:  viper.GetString("elevenlabs.default_voice"),
			RequestTimeout:  viper.GetDuration("ai.request_timeout"),
		},
		JWT: JWTConfig{
			Secret:          viper.GetString("jwt.secret"),
			AccessExpiry:    viper.GetDuration("jwt.access_expiry"),
			RefreshExpiry:   viper.GetDuration("jwt.refresh_expiry"),
			PermanentExpiry: viper.GetDuration("jwt.permanent_expiry"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Storage: StorageConfig{
			UploadDir:      viper.GetString("storage.upload_dir"),
			AudioCacheDir:  viper.GetString("storage.audio_cache_dir"),
			MaxResumeBytes: viper.GetInt64("storage.max_resume_bytes"),
			MaxAudioBytes:  viper.GetInt64("storage.max_audio_bytes"),
		},
		Interview: InterviewConfig{
			MaxQuestions:      viper.GetInt("interview.max_questions"),
			InactivityTimeout: viper.GetDuration("interview.inactivity_timeout"),
			TimeLimit:         viper.GetDuration("interview.time_limit"),
			CheckInterval:     viper.GetDuration("interview.check_interval"),
			MaxEmptyResponses: viper.GetInt("interview.max_empty_responses"),
		},
		Voice: VoiceConfig{
			SampleInterval:  viper.GetDuration("voice.sample_interval"),
			Threshold:       threshold,
			SilenceDuration: viper.GetDuration("voice.silence_duration"),
			MinSpeech:       viper.GetDuration("voice.min_speech"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           viper.GetBool("ratelimit.enabled"),
			RequestsPerMinute: viper.GetInt("ratelimit.requests_per_minute"),
			Burst:             viper.GetInt("ratelimit.burst"),
		},
		Breaker: BreakerConfig{
			Enabled:          viper.GetBool("breaker.enabled"),
			MaxRequests:      viper.GetUint32("breaker.max_requests"),
			Interval:         viper.GetDuration("breaker.interval"),
			Timeout:          viper.GetDuration("breaker.timeout"),
			MinRequests:      viper.GetUint32("breaker.min_requests"),
			FailureThreshold: viper.GetFloat64("breaker.failure_threshold"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("metrics.enabled"),
		},
	}
}

// SlogLevel maps the configured log level name onto slog
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
