package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/prepmate/backend/models"
)

// LLM is the language model surface the interview and resume services rely on
type LLM interface {
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]GeneratedQuestion, error)
	EvaluateAnswer(ctx context.Context, req AnswerEvaluationRequest) (*models.AnswerFeedback, error)
	AnalyzeInterview(ctx context.Context, session *models.InterviewSession) (*models.InterviewFeedback, error)
	AnalyzeResume(ctx context.Context, req ResumeAnalysisRequest) (*models.ResumeAnalysis, error)
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type QuestionRequest struct {
	Role           string
	InterviewType  string
	Difficulty     string
	Count          int
	JobTitle       string
	JobDescription string
	Skills         []string
	ResumeText     string
	Interviewer    *models.Interviewer
}

type GeneratedQuestion struct {
	Text           string   `json:"text"`
	Category       string   `json:"category"`
	ExpectedPoints []string `json:"expected_points"`
}

type AnswerEvaluationRequest struct {
	Role           string
	Difficulty     string
	Question       string
	Category       string
	ExpectedPoints []string
	Answer         string
	Interviewer    *models.Interviewer
}

type ResumeAnalysisRequest struct {
	ResumeText     string
	JobTitle       string
	JobDescription string
	Skills         []string
}

// clamp bounds v to [lo, hi]; NaN becomes lo
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// parseJSONResponse decodes a model reply that may be wrapped in a markdown code fence
func parseJSONResponse(text string, dst interface{}) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	// tolerate prose around the payload
	if start := strings.IndexAny(text, "{["); start > 0 {
		text = text[start:]
	}
	if end := strings.LastIndexAny(text, "}]"); end >= 0 && end < len(text)-1 {
		text = text[:end+1]
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("failed to parse model response: %w", err)
	}
	return nil
}

var behavioralBank = []GeneratedQuestion{
	{Text: "Tell me about yourself and what draws you to a %s role.", Category: "introduction",
		ExpectedPoints: []string{"relevant background", "motivation", "fit for the role"}},
	{Text: "Describe a time you disagreed with a teammate. How did you resolve it?", Category: "behavioral",
		ExpectedPoints: []string{"situation", "actions taken", "outcome", "what was learned"}},
	{Text: "Tell me about a project you are proud of as a %s. What was your contribution?", Category: "behavioral",
		ExpectedPoints: []string{"scope", "personal ownership", "measurable result"}},
	{Text: "Describe a failure or mistake at work and what you changed afterwards.", Category: "behavioral",
		ExpectedPoints: []string{"honest account", "root cause", "lasting change"}},
	{Text: "How do you prioritize when several deadlines collide?", Category: "behavioral",
		ExpectedPoints: []string{"prioritization method", "communication with stakeholders", "example"}},
	{Text: "Where do you want to grow in the next two years?", Category: "career",
		ExpectedPoints: []string{"specific goals", "link to the role"}},
}

var technicalBank = []GeneratedQuestion{
	{Text: "Walk me through how you would design a core system a %s works on, from requirements to deployment.", Category: "system_design",
		ExpectedPoints: []string{"requirements", "components", "trade-offs", "scaling", "failure handling"}},
	{Text: "How do you make sure your work is correct before it reaches users?", Category: "technical",
		ExpectedPoints: []string{"testing strategy", "code review", "monitoring"}},
	{Text: "Describe the hardest technical problem you debugged recently and how you approached it.", Category: "problem_solving",
		ExpectedPoints: []string{"hypotheses", "tools used", "root cause", "fix and prevention"}},
	{Text: "Which tools and technologies do you rely on most as a %s, and why?", Category: "technical",
		ExpectedPoints: []string{"concrete tools", "reasons", "alternatives considered"}},
	{Text: "How would you improve the performance of a slow feature you own?", Category: "technical",
		ExpectedPoints: []string{"measure first", "identify bottleneck", "targeted change", "verify"}},
	{Text: "Explain a complex technical concept from your field to a non-technical stakeholder.", Category: "communication",
		ExpectedPoints: []string{"clarity", "analogy", "checking understanding"}},
}

// fallbackQuestions builds a question list without the model
func fallbackQuestions(req QuestionRequest) []GeneratedQuestion {
	var pool []GeneratedQuestion
	switch req.InterviewType {
	case models.InterviewTypeBehavioral:
		pool = behavioralBank
	case models.InterviewTypeTechnical:
		pool = technicalBank
	default:
		// interleave so a mixed interview alternates
		for i := 0; i < len(behavioralBank) || i < len(technicalBank); i++ {
			if i < len(behavioralBank) {
				pool = append(pool, behavioralBank[i])
			}
			if i < len(technicalBank) {
				pool = append(pool, technicalBank[i])
			}
		}
	}

	role := req.Role
	if role == "" {
		role = "candidate"
	}

	out := make([]GeneratedQuestion, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		q := pool[i%len(pool)]
		text := q.Text
		if strings.Contains(text, "%s") {
			text = fmt.Sprintf(text, role)
		}
		if i >= len(pool) {
			text = "Follow-up: " + text
		}
		out = append(out, GeneratedQuestion{Text: text, Category: q.Category, ExpectedPoints: q.ExpectedPoints})
	}
	return out
}

// heuristicAnswerFeedback scores an answer by length and coverage of expected points
func heuristicAnswerFeedback(req AnswerEvaluationRequest) *models.AnswerFeedback {
	words := strings.Fields(req.Answer)
	var score float64
	switch n := len(words); {
	case n < 10:
		score = 2
	case n < 30:
		score = 4
	case n < 80:
		score = 6
	default:
		score = 7
	}

	lower := strings.ToLower(req.Answer)
	covered := 0
	var missing []string
	for _, p := range req.ExpectedPoints {
		hit := false
		for _, w := range strings.Fields(strings.ToLower(p)) {
			if len(w) > 3 && strings.Contains(lower, w) {
				hit = true
				break
			}
		}
		if hit {
			covered++
		} else {
			missing = append(missing, p)
		}
	}
	if len(req.ExpectedPoints) > 0 {
		score += 3 * float64(covered) / float64(len(req.ExpectedPoints))
	}
	score = round1(clamp(score, 0, 10))

	fb := &models.AnswerFeedback{
		Score:     score,
		Summary:   "Automated feedback based on answer length and coverage of key points.",
		Generated: false,
	}
	if len(words) >= 30 {
		fb.Strengths = append(fb.Strengths, "Answer is detailed")
	}
	if covered > 0 {
		fb.Strengths = append(fb.Strengths, fmt.Sprintf("Covers %d of %d key points", covered, len(req.ExpectedPoints)))
	}
	if len(words) < 30 {
		fb.Improvements = append(fb.Improvements, "Give a fuller answer with a concrete example")
	}
	for _, m := range missing {
		fb.Improvements = append(fb.Improvements, "Address: "+m)
	}
	return fb
}

// overallScore is the mean answer score scaled to 0-100; unanswered questions count as zero
func overallScore(session *models.InterviewSession) float64 {
	if len(session.Questions) == 0 {
		return 0
	}
	var sum float64
	for _, q := range session.Questions {
		if q.Answer != nil {
			sum += clamp(q.Answer.Score, 0, 10)
		}
	}
	return round1(sum / float64(len(session.Questions)) * 10)
}

// heuristicInterviewFeedback summarizes per-answer feedback without the model
func heuristicInterviewFeedback(session *models.InterviewSession) *models.InterviewFeedback {
	fb := &models.InterviewFeedback{
		OverallScore:   overallScore(session),
		CategoryScores: map[string]float64{},
		Generated:      false,
	}

	counts := map[string]int{}
	answered := 0
	for _, q := range session.Questions {
		if q.Answer == nil {
			continue
		}
		answered++
		cat := q.Category
		if cat == "" {
			cat = "general"
		}
		fb.CategoryScores[cat] += q.Answer.Score * 10
		counts[cat]++
		if q.Answer.Score >= 7 {
			fb.Strengths = append(fb.Strengths, "Strong answer: "+q.Text)
		} else if q.Answer.Score < 5 {
			fb.Weaknesses = append(fb.Weaknesses, "Needs work: "+q.Text)
		}
	}
	for cat, total := range fb.CategoryScores {
		fb.CategoryScores[cat] = round1(total / float64(counts[cat]))
	}

	fb.Summary = fmt.Sprintf("Answered %d of %d questions with an overall score of %.0f/100.",
		answered, len(session.Questions), fb.OverallScore)
	if answered < len(session.Questions) {
		fb.Recommendations = append(fb.Recommendations, "Complete every question to get a full assessment")
	}
	if len(fb.Weaknesses) > 0 {
		fb.Recommendations = append(fb.Recommendations, "Use the STAR structure and concrete examples in weaker answers")
	}
	return fb
}

// normalizeInterviewFeedback clamps model output. The overall score always
// comes from the stored answer scores so it matches the session row.
func normalizeInterviewFeedback(fb *models.InterviewFeedback, session *models.InterviewSession) {
	fb.OverallScore = overallScore(session)
	for k, v := range fb.CategoryScores {
		fb.CategoryScores[k] = round1(clamp(v, 0, 100))
	}
}

func normalizeResumeAnalysis(a *models.ResumeAnalysis) {
	a.OverallScore = round1(clamp(a.OverallScore, 0, 100))
	a.ATSScore = round1(clamp(a.ATSScore, 0, 100))
}

func normalizeAnswerFeedback(fb *models.AnswerFeedback) {
	fb.Score = round1(clamp(fb.Score, 0, 10))
}
