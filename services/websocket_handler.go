package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prepmate/backend/metrics"
	"github.com/prepmate/backend/models"
	"github.com/prepmate/backend/voice"
	ws "github.com/prepmate/backend/websocket"
)

// WebSocketHandler upgrades /interviews/{id}/live and runs a liveSession per connection
type WebSocketHandler struct {
	hub            *ws.Hub
	interviews     *InterviewService
	timeoutService *SessionTimeoutService
	authService    *AuthService
	metrics        *metrics.Metrics
	voiceCfg       voice.Config
	upgrader       websocket.Upgrader
	baseCtx        context.Context
}

func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, interviews *InterviewService, timeoutService *SessionTimeoutService, authService *AuthService, voiceCfg voice.Config, allowedOrigins string, m *metrics.Metrics) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		interviews:     interviews,
		timeoutService: timeoutService,
		authService:    authService,
		metrics:        m,
		voiceCfg:       voiceCfg,
		baseCtx:        ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks.
// allowedOriginsStr is a comma separated list; an empty list denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if strings.TrimSpace(allowedOriginsStr) == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range ParseOrigins(allowedOriginsStr) {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

// ParseOrigins splits a comma separated origin list
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.With(h.authService.Middleware).Get("/interviews/{id}/live", h.ServeLive)
}

func (h *WebSocketHandler) ServeLive(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	session, err := h.interviews.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if session.Status != models.SessionStatusActive {
		writeServiceError(w, r, ErrSessionClosed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err, "session_id", session.ID)
		return
	}

	client := h.hub.RegisterClient(conn, user.ID, session.ID)
	live := newLiveSession(h.baseCtx, client, session, h.interviews, h.timeoutService, h.voiceCfg)

	if h.timeoutService != nil {
		h.timeoutService.RegisterSession(session.ID, user.ID)
		h.timeoutService.UpdateActivity(r.Context(), session.ID)
	}
	h.metrics.LiveConnected()

	client.MessageHandler = func(_ *ws.Client, msg ws.Message) {
		live.handle(msg)
	}
	client.OnClose = func(c *ws.Client) {
		live.stop()
		if h.timeoutService != nil {
			h.timeoutService.EndSession(c.SessionID)
		}
		h.metrics.LiveDisconnected()
		slog.Info("Live interview disconnected", "session_id", c.SessionID, "recognizer_restarts", live.detector.Restarts())
	}

	slog.Info("Live interview connected", "user_id", user.ID, "session_id", session.ID)

	go client.WritePump()
	go client.ReadPump()
	live.start(session)
}
