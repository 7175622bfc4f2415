package services

import (
	"fmt"
	"strings"

	"github.com/prepmate/backend/models"
)

// resume text beyond this many runes is cut before prompting
const maxPromptResumeChars = 12000

var personalityTone = map[string]string{
	"strict":      "You are demanding and precise. Point out gaps directly and hold answers to a high bar.",
	"encouraging": "You are warm and supportive. Acknowledge what went well before suggesting improvements.",
	"technical":   "You focus on technical depth, correctness and trade-offs.",
	"balanced":    "You are fair and professional, balancing praise with constructive criticism.",
}

func interviewerInstruction(iv *models.Interviewer) string {
	var b strings.Builder
	b.WriteString("You are an experienced interviewer running a mock job interview.")
	if iv != nil {
		fmt.Fprintf(&b, " Your name is %s.", iv.Name)
		if iv.Industry != "" {
			fmt.Fprintf(&b, " You specialize in the %s industry.", iv.Industry)
		}
		if tone, ok := personalityTone[iv.Personality]; ok {
			b.WriteString(" " + tone)
		}
	} else {
		b.WriteString(" " + personalityTone["balanced"])
	}
	b.WriteString(" Always reply with valid JSON only.")
	return b.String()
}

// truncate keeps at most n runes of s
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func questionPrompt(req QuestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d %s interview questions at %s difficulty for a candidate applying as %s.\n",
		req.Count, req.InterviewType, req.Difficulty, req.Role)
	if req.JobTitle != "" {
		fmt.Fprintf(&b, "\nTarget job: %s\n", req.JobTitle)
	}
	if req.JobDescription != "" {
		fmt.Fprintf(&b, "Job description:\n%s\n", req.JobDescription)
	}
	if len(req.Skills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(req.Skills, ", "))
	}
	if req.ResumeText != "" {
		fmt.Fprintf(&b, "\nCandidate resume:\n%s\n", truncate(req.ResumeText, maxPromptResumeChars))
		b.WriteString("Tailor some questions to the candidate's actual experience.\n")
	}
	b.WriteString(`
Start with a short introductory question. Do not number the questions.
Respond with JSON in this shape:
{"questions": [{"text": "...", "category": "introduction|behavioral|technical|system_design|problem_solving|communication|career", "expected_points": ["...", "..."]}]}`)
	return b.String()
}

func evaluationPrompt(req AnswerEvaluationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the candidate's answer in a %s difficulty interview for %s.\n\n", req.Difficulty, req.Role)
	fmt.Fprintf(&b, "Question (%s): %s\n", req.Category, req.Question)
	if len(req.ExpectedPoints) > 0 {
		fmt.Fprintf(&b, "A strong answer covers: %s\n", strings.Join(req.ExpectedPoints, "; "))
	}
	fmt.Fprintf(&b, "\nCandidate answer:\n%s\n", req.Answer)
	b.WriteString(`
Score from 0 (no answer) to 10 (outstanding).
Respond with JSON in this shape:
{"score": 0-10, "summary": "...", "strengths": ["..."], "improvements": ["..."], "sample_answer": "..."}`)
	return b.String()
}

func interviewAnalysisPrompt(session *models.InterviewSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s mock interview for %s at %s difficulty.\n\n",
		session.InterviewType, session.Role, session.Difficulty)
	for i, q := range session.Questions {
		fmt.Fprintf(&b, "Q%d (%s): %s\n", i+1, q.Category, q.Text)
		if q.Answer == nil {
			b.WriteString("A: [not answered]\n\n")
			continue
		}
		fmt.Fprintf(&b, "A: %s\nScore: %.1f/10\n\n", q.Answer.Transcript, q.Answer.Score)
	}
	b.WriteString(`Unanswered questions count against the candidate.
Respond with JSON in this shape:
{"overall_score": 0-100, "summary": "...", "strengths": ["..."], "weaknesses": ["..."], "recommendations": ["..."], "category_scores": {"<category>": 0-100}}`)
	return b.String()
}

func resumePrompt(req ResumeAnalysisRequest) string {
	var b strings.Builder
	b.WriteString("Review the following resume")
	if req.JobTitle != "" {
		fmt.Fprintf(&b, " against the role %q", req.JobTitle)
	}
	b.WriteString(".\n\n")
	if req.JobDescription != "" {
		fmt.Fprintf(&b, "Job description:\n%s\n\n", req.JobDescription)
	}
	if len(req.Skills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n\n", strings.Join(req.Skills, ", "))
	}
	fmt.Fprintf(&b, "Resume:\n%s\n", truncate(req.ResumeText, maxPromptResumeChars))
	b.WriteString(`
Rate overall quality and applicant tracking system compatibility from 0 to 100.
When a job is given, list matched and missing keywords.
Respond with JSON in this shape:
{"overall_score": 0-100, "ats_score": 0-100, "summary": "...", "strengths": ["..."], "weaknesses": ["..."], "suggestions": ["..."], "matched_keywords": ["..."], "missing_keywords": ["..."]}`)
	return b.String()
}
