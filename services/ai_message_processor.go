package services

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prepmate/backend/models"
	"github.com/prepmate/backend/voice"
	ws "github.com/prepmate/backend/websocket"
)

const (
	emptyResponseWarning = "I couldn't hear a clear response. Please try again."
	emptyResponseFinal   = "It seems we've had several attempts without a valid response. We'll end the session here and prepare your summary."
	// level samples older than this read as silence
	staleLevelAfter = 500 * time.Millisecond
	touchEvery      = 15 * time.Second
)

// liveSession drives one voice interview: it feeds client audio levels into
// the turn detector and submits the collected transcript when a turn ends
type liveSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	client    *ws.Client
	userID    string
	sessionID string
	voiceID   string

	interviews *InterviewService
	timeouts   *SessionTimeoutService

	detector    *voice.Detector
	meter       *voice.Meter
	lastLevelAt atomic.Int64

	mu         sync.Mutex
	finals     []string
	partial    string
	question   *models.InterviewQuestion
	askedAt    time.Time
	submitting bool
	done       bool
	lastTouch  time.Time
}

func newLiveSession(ctx context.Context, client *ws.Client, session *models.InterviewSession, interviews *InterviewService, timeouts *SessionTimeoutService, cfg voice.Config) *liveSession {
	ctx, cancel := context.WithCancel(ctx)
	l := &liveSession{
		ctx:        ctx,
		cancel:     cancel,
		client:     client,
		userID:     session.UserID,
		sessionID:  session.ID,
		voiceID:    session.VoiceID,
		interviews: interviews,
		timeouts:   timeouts,
		detector:   voice.NewDetector(cfg),
		meter:      voice.NewMeter(),
	}
	l.detector.OnStateChange = l.onStateChange
	l.detector.OnTurnEnd = l.onTurnEnd
	return l
}

func (l *liveSession) level() float64 {
	if time.Since(time.Unix(0, l.lastLevelAt.Load())) > staleLevelAfter {
		return voice.SilenceFloor
	}
	return l.meter.Level()
}

func (l *liveSession) setLevel(db float64) {
	l.meter.Set(db)
	l.lastLevelAt.Store(time.Now().UnixNano())
}

// start asks the first unanswered question and begins sampling
func (l *liveSession) start(session *models.InterviewSession) {
	go l.detector.Run(l.ctx, l.level)
	l.ask(session.NextQuestion(), session.AnsweredCount(), len(session.Questions))
}

func (l *liveSession) stop() {
	l.cancel()
}

// ask sends a question with its audio when TTS is available. A nil question completes the interview.
func (l *liveSession) ask(q *models.InterviewQuestion, answered, total int) {
	if q == nil {
		l.complete()
		return
	}

	l.mu.Lock()
	l.question = q
	l.askedAt = time.Now()
	l.finals = nil
	l.partial = ""
	l.mu.Unlock()

	msg := ws.ServerMessage{
		Type:       "question",
		Content:    q.Text,
		QuestionID: q.ID,
		Index:      q.Position,
		Total:      total,
		Data:       map[string]int{"answered": answered},
	}
	audio, err := l.interviews.Speak(l.ctx, q.Text, l.voiceID)
	if err != nil {
		if !errors.Is(err, ErrAIUnavailable) {
			slog.Warn("Question audio unavailable", "error", err, "session_id", l.sessionID)
		}
	} else {
		msg.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
	}
	l.client.SendJSON(msg)
}

func (l *liveSession) onStateChange(from, to voice.State) {
	l.client.SendJSON(ws.ServerMessage{Type: "state", State: to.String()})
}

// handle routes one client frame
func (l *liveSession) handle(msg ws.Message) {
	switch msg.Type {
	case "tts_started":
		l.detector.AIStarted()
	case "tts_ended":
		l.detector.AIFinished()
	case "level":
		l.setLevel(msg.Level)
	case "pcm":
		pcm, err := base64.StdEncoding.DecodeString(msg.PCM)
		if err != nil {
			l.client.SendJSON(ws.ServerMessage{Type: "error", Content: "invalid pcm payload"})
			return
		}
		l.setLevel(voice.ToDBFS(voice.PCM16RMS(pcm)))
	case "transcript":
		l.addTranscript(msg.Text, msg.Final)
	case "recognizer_error":
		restart := l.detector.RecognizerError(msg.Reason)
		l.client.SendJSON(ws.ServerMessage{Type: "state", State: l.detector.State().String(), Restart: restart})
	case "end":
		l.end()
		return
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "session_id", l.sessionID)
		return
	}
	l.touch()
}

func (l *liveSession) addTranscript(text string, final bool) {
	text = strings.TrimSpace(text)
	l.mu.Lock()
	if final {
		if text != "" {
			l.finals = append(l.finals, text)
		}
		l.partial = ""
	} else {
		l.partial = text
	}
	current := strings.Join(append(append([]string{}, l.finals...), l.partial), " ")
	l.mu.Unlock()

	l.client.SendJSON(ws.ServerMessage{Type: "transcript", Content: strings.TrimSpace(current)})
}

// touch records activity, throttled so level frames do not hit the database
func (l *liveSession) touch() {
	l.mu.Lock()
	due := time.Since(l.lastTouch) >= touchEvery
	if due {
		l.lastTouch = time.Now()
	}
	l.mu.Unlock()
	if due && l.timeouts != nil {
		l.timeouts.UpdateActivity(l.ctx, l.sessionID)
	}
}

// takeTranscript returns and clears the text collected for the current turn
func (l *liveSession) takeTranscript() (string, *models.InterviewQuestion, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitting || l.done || l.question == nil {
		return "", nil, false
	}
	parts := append([]string{}, l.finals...)
	if l.partial != "" {
		parts = append(parts, l.partial)
	}
	l.finals = nil
	l.partial = ""
	l.submitting = true
	return strings.TrimSpace(strings.Join(parts, " ")), l.question, true
}

func (l *liveSession) onTurnEnd(speech time.Duration) {
	go l.submitTurn(speech)
}

func (l *liveSession) submitTurn(speech time.Duration) {
	text, q, ok := l.takeTranscript()
	if !ok {
		return
	}
	defer func() {
		l.mu.Lock()
		l.submitting = false
		l.mu.Unlock()
	}()

	if isUnintelligible(text) {
		count := 0
		if l.timeouts != nil {
			count = l.timeouts.IncrementEmptyResponse(l.sessionID)
		}
		if l.timeouts != nil && count >= l.timeouts.MaxEmptyResponses() {
			l.client.SendJSON(ws.ServerMessage{Type: "error", Content: emptyResponseFinal})
			l.end()
			return
		}
		l.client.SendJSON(ws.ServerMessage{Type: "error", Content: emptyResponseWarning, QuestionID: q.ID, Index: q.Position})
		return
	}
	if l.timeouts != nil {
		l.timeouts.ResetEmptyResponse(l.sessionID)
	}

	result, err := l.interviews.SubmitAnswer(l.ctx, l.userID, AnswerInput{
		SessionID:       l.sessionID,
		QuestionID:      q.ID,
		Text:            text,
		DurationSeconds: int(speech.Seconds()),
		Source:          models.AnswerSourceVoice,
	})
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			l.end()
			return
		}
		if errors.Is(err, ErrAlreadyAnswered) {
			// another client answered; move on from the stored state
			l.resync()
			return
		}
		slog.Error("Live answer failed", "error", err, "session_id", l.sessionID)
		l.client.SendJSON(ws.ServerMessage{Type: "error", Content: "Failed to save your answer. Please try again."})
		return
	}
	if l.timeouts != nil {
		l.timeouts.UpdateActivity(l.ctx, l.sessionID)
	}

	l.client.SendJSON(ws.ServerMessage{
		Type:       "feedback",
		QuestionID: q.ID,
		Index:      q.Position,
		Total:      result.Total,
		Content:    text,
		Data:       result.Feedback,
	})

	if result.Completed {
		l.complete()
		return
	}
	l.ask(result.NextQuestion, result.Answered, result.Total)
}

func (l *liveSession) resync() {
	session, err := l.interviews.Get(l.ctx, l.userID, l.sessionID)
	if err != nil {
		l.client.SendJSON(ws.ServerMessage{Type: "error", Content: "Failed to load interview"})
		return
	}
	if session.Status != models.SessionStatusActive {
		l.sendCompleted(session)
		return
	}
	l.ask(session.NextQuestion(), session.AnsweredCount(), len(session.Questions))
}

func (l *liveSession) markDone() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return false
	}
	l.done = true
	return true
}

// complete scores a fully answered interview
func (l *liveSession) complete() {
	if !l.markDone() {
		return
	}
	session, err := l.interviews.Complete(l.ctx, l.userID, l.sessionID)
	if err != nil {
		slog.Error("Failed to complete live interview", "error", err, "session_id", l.sessionID)
		l.client.SendJSON(ws.ServerMessage{Type: "error", Content: "Failed to complete interview"})
		l.closeSoon()
		return
	}
	l.sendCompleted(session)
}

// end stops the interview early at the candidate's request or after too many empty turns
func (l *liveSession) end() {
	if !l.markDone() {
		return
	}
	session, err := l.interviews.End(l.ctx, l.userID, l.sessionID)
	if err != nil {
		slog.Error("Failed to end live interview", "error", err, "session_id", l.sessionID)
		l.client.SendJSON(ws.ServerMessage{Type: "error", Content: "Failed to end interview"})
		l.closeSoon()
		return
	}
	l.sendCompleted(session)
}

func (l *liveSession) sendCompleted(session *models.InterviewSession) {
	l.client.SendJSON(ws.ServerMessage{
		Type:    "completed",
		Content: session.Status,
		Total:   len(session.Questions),
		Data:    session,
	})
	l.closeSoon()
}

// closeSoon gives the write loop a moment to flush before the close frame
func (l *liveSession) closeSoon() {
	go func() {
		<-time.After(200 * time.Millisecond)
		l.client.Close()
	}()
}

// isUnintelligible flags empty turns: blank text, recognizer placeholders,
// single characters or the same word repeated
func isUnintelligible(text string) bool {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if lower == "" || lower == "[inaudible]" || lower == "[vocalization]" || len([]rune(trimmed)) < 2 {
		return true
	}
	words := strings.Fields(lower)
	if len(words) < 3 {
		return false
	}
	for _, w := range words[1:] {
		if w != words[0] {
			return false
		}
	}
	return true
}
