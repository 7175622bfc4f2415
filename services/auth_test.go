package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prepmate/backend/models"
)

func newTestAuth(store *memStore) *AuthService {
	return NewAuthService(store, JWTConfig{Secret: "test-secret"}, false)
}

// signedUpUser creates an account and returns it with a bearer token
func signedUpUser(t *testing.T, auth *AuthService, email string) (*models.User, string) {
	t.Helper()
	resp, err := auth.Signup(context.Background(), email, "password123", "Test User")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	return resp.User, resp.AccessToken
}

func cookieFrom(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(newMemStore())

	resp, err := auth.Signup(ctx, "  Jane@Example.com ", "password123", " Jane ")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if resp.User.Email != "jane@example.com" || resp.User.FullName != "Jane" {
		t.Errorf("user not normalized: %+v", resp.User)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.PermanentToken == "" {
		t.Error("expected all three tokens")
	}
	if resp.User.Password == "password123" {
		t.Error("password stored in clear text")
	}

	if _, err := auth.Signup(ctx, "jane@example.com", "password123", "Jane"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate signup: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "JANE@example.com", password: "password123"},
		{name: "wrong password", email: "jane@example.com", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", email: "john@example.com", password: "password123", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Login error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	store := newMemStore()
	auth := newTestAuth(store)
	resp, err := auth.Signup(context.Background(), "sam@example.com", "password123", "Sam")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		setup         func(r *http.Request)
		wantOK        bool
		wantNewAccess bool
	}{
		{name: "no credentials", setup: func(r *http.Request) {}},
		{name: "bearer token", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		}, wantOK: true},
		{name: "access cookie", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: accessCookie, Value: resp.AccessToken})
		}, wantOK: true},
		{name: "refresh cookie reissues access", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: accessCookie, Value: "expired"})
			r.AddCookie(&http.Cookie{Name: refreshCookie, Value: resp.RefreshToken})
		}, wantOK: true, wantNewAccess: true},
		{name: "permanent cookie reissues access", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: permanentCookie, Value: resp.PermanentToken})
		}, wantOK: true, wantNewAccess: true},
		{name: "bad bearer does not fall back to cookies", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
			r.AddCookie(&http.Cookie{Name: accessCookie, Value: resp.AccessToken})
		}},
		{name: "token signed with another secret", setup: func(r *http.Request) {
			other := NewAuthService(store, JWTConfig{Secret: "other"}, false)
			token, _ := other.generateAccessToken(resp.User)
			r.Header.Set("Authorization", "Bearer "+token)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			user, ok := auth.Authenticate(rec, req)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && user.ID != resp.User.ID {
				t.Errorf("user = %s, want %s", user.ID, resp.User.ID)
			}
			if got := cookieFrom(rec, accessCookie) != nil; got != tt.wantNewAccess {
				t.Errorf("new access cookie = %v, want %v", got, tt.wantNewAccess)
			}
		})
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(newMemStore())
	resp, err := auth.Signup(ctx, "ava@example.com", "password123", "Ava")
	if err != nil {
		t.Fatal(err)
	}

	if err := auth.Logout(ctx, resp.User.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := auth.RefreshToken(ctx, resp.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("refresh after logout: %v", err)
	}
	if _, err := auth.VerifyPermanentToken(ctx, resp.PermanentToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("permanent after logout: %v", err)
	}
}

func TestAuthEndpoints(t *testing.T) {
	auth := newTestAuth(newMemStore())
	r := chi.NewRouter()
	NewAuthEndpoints(auth).RegisterRoutes(r)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "signup", path: "/auth/signup", body: `{"email":"kim@example.com","password":"password123","full_name":"Kim"}`, status: http.StatusCreated},
		{name: "signup duplicate", path: "/auth/signup", body: `{"email":"kim@example.com","password":"password123","full_name":"Kim"}`, status: http.StatusConflict},
		{name: "signup short password", path: "/auth/signup", body: `{"email":"lee@example.com","password":"short","full_name":"Lee"}`, status: http.StatusBadRequest},
		{name: "signup bad email", path: "/auth/signup", body: `{"email":"nope","password":"password123","full_name":"Lee"}`, status: http.StatusBadRequest},
		{name: "login", path: "/auth/login", body: `{"email":"kim@example.com","password":"password123"}`, status: http.StatusOK},
		{name: "login wrong password", path: "/auth/login", body: `{"email":"kim@example.com","password":"wrongpass"}`, status: http.StatusUnauthorized},
		{name: "malformed body", path: "/auth/login", body: `{`, status: http.StatusBadRequest},
		{name: "refresh without cookie", path: "/auth/refresh", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status == http.StatusOK && tt.path == "/auth/login" {
				for _, name := range []string{accessCookie, refreshCookie, permanentCookie} {
					c := cookieFrom(rec, name)
					if c == nil || !c.HttpOnly {
						t.Errorf("cookie %s missing or not HttpOnly", name)
					}
				}
			}
		})
	}

	t.Run("me requires auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}
