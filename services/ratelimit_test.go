package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prepmate/backend/models"
)

func TestLimiterMiddleware(t *testing.T) {
	m := NewLimiterManager(1, 2)
	defer m.Close()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remote string, user *models.User) int {
		req := httptest.NewRequest(http.MethodPost, "/api/interviews/start", nil)
		req.RemoteAddr = remote
		if user != nil {
			req = req.WithContext(WithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("missing Retry-After header")
		}
		return rec.Code
	}

	// burst of two, then limited
	for i, want := range []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests} {
		if got := send("10.0.0.1:1234", nil); got != want {
			t.Errorf("request %d from ip: status %d, want %d", i, got, want)
		}
	}

	if got := send("10.0.0.2:1234", nil); got != http.StatusNoContent {
		t.Errorf("other ip should have its own bucket, got %d", got)
	}

	// signing in does not open a fresh bucket on the same ip
	user := &models.User{ID: "u-1"}
	if got := send("10.0.0.1:1234", user); got != http.StatusTooManyRequests {
		t.Errorf("authenticated request from a limited ip: status %d, want 429", got)
	}
	if got := send("10.0.0.3:5678", user); got != http.StatusNoContent {
		t.Errorf("authenticated request from a fresh ip: status %d, want 204", got)
	}
}

func TestNilLimiterPassesThrough(t *testing.T) {
	var m *LimiterManager
	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("nil limiter should not block")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.5:5555", "192.168.1.5"},
		{"[::1]:80", "::1"},
		{"10.1.1.1", "10.1.1.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
