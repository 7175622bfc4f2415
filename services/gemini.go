package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prepmate/backend/metrics"
	"github.com/prepmate/backend/models"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiService talks to Gemini through a circuit breaker. All structured
// calls ask for JSON output and are parsed into the model types.
type GeminiService struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*genai.GenerateContentResponse]
	metrics *metrics.Metrics
}

func NewGeminiService(ctx context.Context, cfg AIConfig, bcfg BreakerConfig, m *metrics.Metrics) (*GeminiService, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.GeminiModel
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiService{
		client:  client,
		model:   model,
		timeout: timeout,
		breaker: newAIBreaker(bcfg),
		metrics: m,
	}, nil
}

// newAIBreaker returns nil when the breaker is disabled
func newAIBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*genai.GenerateContentResponse] {
	if !cfg.Enabled {
		return nil
	}
	settings := gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return gobreaker.NewCircuitBreaker[*genai.GenerateContentResponse](settings)
}

// BreakerState reports the breaker state for the health endpoint
func (g *GeminiService) BreakerState() string {
	if g == nil {
		return "unconfigured"
	}
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}

func (g *GeminiService) generate(ctx context.Context, op string, contents []*genai.Content, system string, jsonOutput bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.4),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if jsonOutput {
		config.ResponseMIMEType = "application/json"
	}

	call := func() (*genai.GenerateContentResponse, error) {
		return g.client.Models.GenerateContent(ctx, g.model, contents, config)
	}

	var (
		result *genai.GenerateContentResponse
		err    error
	)
	if g.breaker != nil {
		result, err = g.breaker.Execute(call)
	} else {
		result, err = call()
	}
	g.metrics.AIRequest(op, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%s: %w", op, ErrAIUnavailable)
		}
		return "", fmt.Errorf("%s: failed to generate content: %w", op, err)
	}

	return strings.TrimSpace(result.Text()), nil
}

func (g *GeminiService) generateJSON(ctx context.Context, op, system, prompt string, dst interface{}) error {
	text, err := g.generate(ctx, op, genai.Text(prompt), system, true)
	if err != nil {
		return err
	}
	return parseJSONResponse(text, dst)
}

func (g *GeminiService) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]GeneratedQuestion, error) {
	var out struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := g.generateJSON(ctx, "generate_questions", interviewerInstruction(req.Interviewer), questionPrompt(req), &out); err != nil {
		return nil, err
	}

	questions := make([]GeneratedQuestion, 0, req.Count)
	for _, q := range out.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == req.Count {
			break
		}
	}
	if len(questions) == 0 {
		return nil, errors.New("generate_questions: model returned no questions")
	}
	slog.Info("Generated interview questions", "role", req.Role, "count", len(questions))
	return questions, nil
}

func (g *GeminiService) EvaluateAnswer(ctx context.Context, req AnswerEvaluationRequest) (*models.AnswerFeedback, error) {
	var fb models.AnswerFeedback
	if err := g.generateJSON(ctx, "evaluate_answer", interviewerInstruction(req.Interviewer), evaluationPrompt(req), &fb); err != nil {
		return nil, err
	}
	normalizeAnswerFeedback(&fb)
	fb.Generated = true
	return &fb, nil
}

func (g *GeminiService) AnalyzeInterview(ctx context.Context, session *models.InterviewSession) (*models.InterviewFeedback, error) {
	var fb models.InterviewFeedback
	if err := g.generateJSON(ctx, "analyze_interview", interviewerInstruction(session.Interviewer), interviewAnalysisPrompt(session), &fb); err != nil {
		return nil, err
	}
	normalizeInterviewFeedback(&fb, session)
	fb.Generated = true
	return &fb, nil
}

func (g *GeminiService) AnalyzeResume(ctx context.Context, req ResumeAnalysisRequest) (*models.ResumeAnalysis, error) {
	var a models.ResumeAnalysis
	system := "You are an experienced technical recruiter and resume reviewer. Be specific and actionable."
	if err := g.generateJSON(ctx, "analyze_resume", system, resumePrompt(req), &a); err != nil {
		return nil, err
	}
	normalizeResumeAnalysis(&a)
	return &a, nil
}

// Transcribe converts a recorded answer into text
func (g *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	parts := []*genai.Part{
		genai.NewPartFromText("Transcribe this audio to text. Provide only the transcript, no additional commentary. If nothing intelligible is said, return an empty string."),
		{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     audio,
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	text, err := g.generate(ctx, "transcribe", contents, "", false)
	if err != nil {
		return "", err
	}
	text = strings.Trim(text, "\"")
	slog.Info("Audio transcribed successfully", "size", len(audio), "transcript_length", len(text))
	return text, nil
}
