package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prepmate/backend/models"
)

type userStore interface {
	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)
	UpdateUserProfile(ctx context.Context, userID, fullName, avatarURL string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type UserEndpoints struct {
	repo        userStore
	authService *AuthService
}

type UpdateProfileRequest struct {
	FullName  string `json:"full_name" validate:"required,max=255"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=1024"`
}

func NewUserEndpoints(repo userStore, authService *AuthService) *UserEndpoints {
	return &UserEndpoints{repo: repo, authService: authService}
}

func (e *UserEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/users/me", func(r chi.Router) {
		r.Use(e.authService.Middleware)
		r.Get("/stats", e.StatsHandler)
		r.Put("/", e.UpdateProfileHandler)
	})
}

// StatsHandler serves the dashboard aggregate
func (e *UserEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	stats, err := e.repo.GetUserStats(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *UserEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req UpdateProfileRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := e.repo.UpdateUserProfile(r.Context(), user.ID, strings.TrimSpace(req.FullName), req.AvatarURL); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := e.repo.GetUserByID(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": userPayload(updated)})
}
