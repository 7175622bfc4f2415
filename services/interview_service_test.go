package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prepmate/backend/models"
)

const testUser = "00000000-0000-4000-8000-999999999999"

func newTestInterviewService(llm LLM) (*InterviewService, *memStore) {
	store := newMemStore()
	cfg := InterviewConfig{MaxQuestions: 10, InactivityTimeout: 30 * time.Minute, TimeLimit: 45 * time.Minute}
	return NewInterviewService(store, llm, nil, cfg, defaultVoiceID, nil), store
}

func startSession(t *testing.T, svc *InterviewService, count int) *models.InterviewSession {
	t.Helper()
	session, err := svc.Start(context.Background(), testUser, StartInterviewRequest{
		Role:          "Backend Engineer",
		InterviewType: models.InterviewTypeMixed,
		QuestionCount: count,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return session
}

func TestStartInterviewValidation(t *testing.T) {
	svc, _ := newTestInterviewService(nil)

	tests := []struct {
		name string
		req  StartInterviewRequest
	}{
		{name: "missing role", req: StartInterviewRequest{}},
		{name: "too many questions", req: StartInterviewRequest{Role: "SRE", QuestionCount: 11}},
		{name: "negative count", req: StartInterviewRequest{Role: "SRE", QuestionCount: -1}},
		{name: "unknown type", req: StartInterviewRequest{Role: "SRE", InterviewType: "trivia"}},
		{name: "bad difficulty", req: StartInterviewRequest{Role: "SRE", Difficulty: "impossible"}},
		{name: "malformed job id", req: StartInterviewRequest{Role: "SRE", JobID: "not-a-uuid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Start(context.Background(), testUser, tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestStartInterviewUnknownJob(t *testing.T) {
	svc, _ := newTestInterviewService(nil)
	_, err := svc.Start(context.Background(), testUser, StartInterviewRequest{JobID: "00000000-0000-4000-8000-000000000777"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartInterviewDefaults(t *testing.T) {
	svc, _ := newTestInterviewService(nil)
	session, err := svc.Start(context.Background(), testUser, StartInterviewRequest{Role: "Data Analyst"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.InterviewType != models.InterviewTypeMixed || session.Difficulty != "medium" {
		t.Errorf("defaults not applied: %s/%s", session.InterviewType, session.Difficulty)
	}
	if len(session.Questions) != defaultQuestionCount {
		t.Errorf("got %d questions, want %d", len(session.Questions), defaultQuestionCount)
	}
	if session.VoiceID != defaultVoiceID {
		t.Errorf("voice = %q, want default", session.VoiceID)
	}
	for i, q := range session.Questions {
		if q.Position != i || q.ID == "" {
			t.Errorf("question %d has position %d id %q", i, q.Position, q.ID)
		}
	}
}

func TestStartInterviewUsesJobTitle(t *testing.T) {
	svc, store := newTestInterviewService(nil)
	job := &models.Job{Title: "Platform Engineer", Skills: []string{"go"}}
	_ = store.CreateJob(context.Background(), job)

	session, err := svc.Start(context.Background(), testUser, StartInterviewRequest{JobID: job.ID, QuestionCount: 2})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.Role != "Platform Engineer" || session.JobID == nil || *session.JobID != job.ID {
		t.Errorf("job not attached: role=%q job=%v", session.Role, session.JobID)
	}
}

func TestStartInterviewTopsUpShortModelOutput(t *testing.T) {
	llm := &stubLLM{questions: []GeneratedQuestion{{Text: "Why Go?", Category: "technical"}}}
	svc, _ := newTestInterviewService(llm)

	session := startSession(t, svc, 3)
	if len(session.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(session.Questions))
	}
	if session.Questions[0].Text != "Why Go?" {
		t.Errorf("model question should come first, got %q", session.Questions[0].Text)
	}
}

func TestStartInterviewFallsBackWhenModelFails(t *testing.T) {
	svc, _ := newTestInterviewService(&stubLLM{failAll: true})
	session := startSession(t, svc, 4)
	if len(session.Questions) != 4 {
		t.Fatalf("got %d questions, want 4", len(session.Questions))
	}
}

func TestSubmitAnswerFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestInterviewService(&stubLLM{score: 8})
	session := startSession(t, svc, 2)
	q0, q1 := session.Questions[0], session.Questions[1]

	res, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: q0.ID, Text: "  I built the billing pipeline.  "})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Answer.Transcript != "I built the billing pipeline." {
		t.Errorf("transcript not trimmed: %q", res.Answer.Transcript)
	}
	if res.Answer.Source != models.AnswerSourceText {
		t.Errorf("source = %q, want text", res.Answer.Source)
	}
	if res.NextQuestion == nil || res.NextQuestion.ID != q1.ID {
		t.Fatalf("next question = %+v, want %s", res.NextQuestion, q1.ID)
	}
	if res.Completed || res.Answered != 1 || res.Total != 2 {
		t.Errorf("progress = %d/%d completed=%v", res.Answered, res.Total, res.Completed)
	}

	t.Run("duplicate answer", func(t *testing.T) {
		_, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: q0.ID, Text: "again"})
		if !errors.Is(err, ErrAlreadyAnswered) {
			t.Errorf("expected ErrAlreadyAnswered, got %v", err)
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		_, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: q1.ID, Text: "   "})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: "00000000-0000-4000-8000-000000000999", Text: "hi"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("malformed ids", func(t *testing.T) {
		for _, in := range []AnswerInput{
			{SessionID: "42", QuestionID: q1.ID, Text: "hi"},
			{SessionID: session.ID, QuestionID: "nope", Text: "hi"},
		} {
			if _, err := svc.SubmitAnswer(ctx, testUser, in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("SubmitAnswer(%s, %s) = %v, want ErrInvalidInput", in.SessionID, in.QuestionID, err)
			}
		}
	})

	t.Run("other user's session", func(t *testing.T) {
		_, err := svc.SubmitAnswer(ctx, "someone-else", AnswerInput{SessionID: session.ID, QuestionID: q1.ID, Text: "hi"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	res, err = svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: q1.ID, Text: "Second answer"})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.Completed || res.NextQuestion != nil {
		t.Errorf("expected all questions answered, got %+v", res)
	}
}

func TestSubmitAnswerAudio(t *testing.T) {
	ctx := context.Background()

	t.Run("no model configured", func(t *testing.T) {
		svc, _ := newTestInterviewService(nil)
		session := startSession(t, svc, 1)
		_, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Audio: []byte{1, 2, 3}})
		if !errors.Is(err, ErrAIUnavailable) {
			t.Errorf("expected ErrAIUnavailable, got %v", err)
		}
	})

	t.Run("transcribed", func(t *testing.T) {
		svc, _ := newTestInterviewService(&stubLLM{score: 6, transcript: " spoken answer "})
		session := startSession(t, svc, 1)
		res, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Audio: []byte{1, 2, 3}, AudioMIME: "audio/webm"})
		if err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
		if res.Answer.Transcript != "spoken answer" || res.Answer.Source != models.AnswerSourceAudio {
			t.Errorf("got transcript %q source %q", res.Answer.Transcript, res.Answer.Source)
		}
	})

	t.Run("silent recording", func(t *testing.T) {
		svc, _ := newTestInterviewService(&stubLLM{transcript: ""})
		session := startSession(t, svc, 1)
		_, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Audio: []byte{0}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestSubmitAnswerHeuristicFallback(t *testing.T) {
	svc, _ := newTestInterviewService(&stubLLM{failAll: true, questions: nil})
	session := startSession(t, svc, 1)
	res, err := svc.SubmitAnswer(context.Background(), testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Text: "short"})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Feedback.Generated {
		t.Error("expected heuristic feedback when the model fails")
	}
}

func TestCompleteScoresMeanOfAnswers(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestInterviewService(&stubLLM{score: 8})
	session := startSession(t, svc, 4)

	for _, q := range session.Questions[:2] {
		if _, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: q.ID, Text: "An answer"}); err != nil {
			t.Fatalf("SubmitAnswer: %v", err)
		}
	}

	done, err := svc.Complete(ctx, testUser, session.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.SessionStatusCompleted {
		t.Errorf("status = %q", done.Status)
	}
	// two of four answered at 8/10
	if done.OverallScore == nil || *done.OverallScore != 40 {
		t.Errorf("overall score = %v, want 40", done.OverallScore)
	}
	if done.Feedback == nil || done.Feedback.OverallScore != 40 {
		t.Errorf("feedback score should match session score: %+v", done.Feedback)
	}
	if done.EndedAt == nil {
		t.Error("EndedAt not set")
	}

	again, err := svc.Complete(ctx, testUser, session.ID)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if *again.OverallScore != 40 || len(store.finished) != 1 {
		t.Errorf("completing twice should be a no-op, finished=%v", store.finished)
	}

	_, err = svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[3].ID, Text: "late"})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestEndWithoutAnswersAbandons(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestInterviewService(nil)
	session := startSession(t, svc, 2)

	ended, err := svc.End(ctx, testUser, session.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if ended.Status != models.SessionStatusAbandoned || ended.OverallScore != nil {
		t.Errorf("status=%q score=%v", ended.Status, ended.OverallScore)
	}

	if _, err := svc.Complete(ctx, testUser, session.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("completing an abandoned session: %v", err)
	}
}

func TestSubmitAnswerAfterTimeLimit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestInterviewService(nil)
	start := time.Now()
	svc.now = func() time.Time { return start }
	session := startSession(t, svc, 1)

	svc.now = func() time.Time { return start.Add(time.Hour) }
	_, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Text: "too late"})
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	got, _ := svc.Get(ctx, testUser, session.ID)
	if got.Status != models.SessionStatusAbandoned {
		t.Errorf("status = %q, want abandoned", got.Status)
	}
}

func TestAnalyzeRequiresAnswers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestInterviewService(&stubLLM{score: 5})
	session := startSession(t, svc, 2)

	if _, err := svc.Analyze(ctx, testUser, session.ID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	if _, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Text: "answer"}); err != nil {
		t.Fatal(err)
	}
	fb, err := svc.Analyze(ctx, testUser, session.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if fb.OverallScore != 25 || !fb.Generated {
		t.Errorf("feedback = %+v", fb)
	}
}

func TestExpireIdle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestInterviewService(&stubLLM{score: 7})
	start := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return start }

	idle := startSession(t, svc, 2)
	answeredIdle := startSession(t, svc, 2)
	if _, err := svc.SubmitAnswer(ctx, testUser, AnswerInput{SessionID: answeredIdle.ID, QuestionID: answeredIdle.Questions[0].ID, Text: "answer"}); err != nil {
		t.Fatal(err)
	}

	svc.now = time.Now
	fresh := startSession(t, svc, 2)
	svc.Touch(ctx, fresh.ID)

	closed, err := svc.ExpireIdle(ctx)
	if err != nil {
		t.Fatalf("ExpireIdle: %v", err)
	}
	if closed != 2 {
		t.Errorf("closed %d sessions, want 2", closed)
	}

	want := map[string]string{
		idle.ID:         models.SessionStatusAbandoned,
		answeredIdle.ID: models.SessionStatusCompleted,
		fresh.ID:        models.SessionStatusActive,
	}
	for id, status := range want {
		got, _ := svc.Get(ctx, testUser, id)
		if got.Status != status {
			t.Errorf("session %s status = %q, want %q", id, got.Status, status)
		}
	}
}

func TestSpeakWithoutTTS(t *testing.T) {
	svc, _ := newTestInterviewService(nil)
	if _, err := svc.Speak(context.Background(), "hello", defaultVoiceID); !errors.Is(err, ErrAIUnavailable) {
		t.Errorf("expected ErrAIUnavailable, got %v", err)
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	svc, _ := newTestInterviewService(nil)
	startSession(t, svc, 1)

	var buf bytes.Buffer
	if err := svc.Export(context.Background(), testUser, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("export is not a zip container")
	}
}
