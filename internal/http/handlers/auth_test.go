package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devmalhar/ticketdesk/internal/auth"
	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/domain/job"
	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/http/handlers"
	"github.com/devmalhar/ticketdesk/internal/otp"
	"github.com/devmalhar/ticketdesk/internal/ratelimit"
	"github.com/devmalhar/ticketdesk/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

// Fake implementations of the handler-side interfaces

type fakeUsers struct {
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	createFn     func(ctx context.Context, email, passwordHash string, skills []string) (user.User, error)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsers) Create(ctx context.Context, email, passwordHash string, skills []string) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, email, passwordHash, skills)
	}
	return user.User{ID: newUUID(), Email: email, Role: "user"}, nil
}

type fakeReset struct {
	requestFn func(ctx context.Context, email string) (string, error)
	verifyFn  func(ctx context.Context, email, code string) error
	resetFn   func(ctx context.Context, email, newPassword string) error
}

func (f *fakeReset) RequestReset(ctx context.Context, email string) (string, error) {
	if f.requestFn != nil {
		return f.requestFn(ctx, email)
	}
	return otp.GenericRequestMessage, nil
}

func (f *fakeReset) VerifyCode(ctx context.Context, email, code string) error {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, email, code)
	}
	return nil
}

func (f *fakeReset) ResetPassword(ctx context.Context, email, newPassword string) error {
	if f.resetFn != nil {
		return f.resetFn(ctx, email, newPassword)
	}
	return nil
}

type fakeLimiter struct {
	err error
}

func (f *fakeLimiter) Allow(ctx context.Context, email, ip string) error { return f.err }

type fakeEnqueuer struct {
	created []job.CreateRequest
}

func (f *fakeEnqueuer) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	f.created = append(f.created, req)
	return job.New(req), nil
}

func newAuthHandler(users *fakeUsers, reset *fakeReset, limiter handlers.ResetLimiter, enq *fakeEnqueuer) *handlers.AuthHandler {
	jwtManager := auth.NewManager("test-secret", time.Hour)

	return handlers.NewAuthHandler(users, users, jwtManager, reset, limiter, enq, config.Config{Env: "test"})
}

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

// Login tests

func TestLoginHandler(t *testing.T) {
	hash, err := security.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	known := user.User{
		ID:           newUUID(),
		Email:        "alice@example.com",
		PasswordHash: hash,
		Role:         "user",
	}

	tests := []struct {
		name           string
		body           string
		usersSetUp     func(*fakeUsers)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{"email":"alice@example.com","password":"correct-horse"}`,
			usersSetUp: func(f *fakeUsers) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return known, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "unknown_email",
			body: `{"email":"nobody@example.com","password":"whatever1"}`,
			usersSetUp: func(f *fakeUsers) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{}, user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "wrong_password",
			body: `{"email":"alice@example.com","password":"wrong-pass"}`,
			usersSetUp: func(f *fakeUsers) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return known, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "validation_error",
			body:           `{"email":"not-an-email"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsers{}

			if tt.usersSetUp != nil {
				tt.usersSetUp(users)
			}

			h := newAuthHandler(users, &fakeReset{}, nil, &fakeEnqueuer{})
			r := setupRouter(http.MethodPost, "/auth/login", h.Login)

			w := doJSON(t, r, http.MethodPost, "/auth/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					AccessToken string `json:"accessToken"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("bad body: %v", err)
				}
				if resp.AccessToken == "" {
					t.Fatal("missing access token on success")
				}
			}
		})
	}
}

func TestSignUpHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		usersSetUp     func(*fakeUsers)
		wantStatusCode int
		wantErrCode    string
		wantJobs       int
	}{
		{
			name: "success_enqueues_welcome_job",
			body: `{"email":"new@example.com","password":"longenough","skills":["go"]}`,
			usersSetUp: func(f *fakeUsers) {
				f.createFn = func(ctx context.Context, email, passwordHash string, skills []string) (user.User, error) {
					if passwordHash == "longenough" {
						return user.User{}, errors.New("plaintext stored")
					}
					return user.User{ID: newUUID(), Email: email, Role: "user", Skills: skills}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
			wantJobs:       1,
		},
		{
			name: "email_taken",
			body: `{"email":"dup@example.com","password":"longenough"}`,
			usersSetUp: func(f *fakeUsers) {
				f.createFn = func(ctx context.Context, email, passwordHash string, skills []string) (user.User, error) {
					return user.User{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusConflict,
			wantErrCode:    "email_taken",
		},
		{
			name:           "short_password",
			body:           `{"email":"new@example.com","password":"abc"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsers{}

			if tt.usersSetUp != nil {
				tt.usersSetUp(users)
			}

			enq := &fakeEnqueuer{}
			h := newAuthHandler(users, &fakeReset{}, nil, enq)
			r := setupRouter(http.MethodPost, "/auth/signup", h.SignUp)

			w := doJSON(t, r, http.MethodPost, "/auth/signup", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantErrCode != "" {
				var resp struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("bad body: %v", err)
				}
				if resp.Error.Code != tt.wantErrCode {
					t.Fatalf("error code = %q, want %q", resp.Error.Code, tt.wantErrCode)
				}
			}

			if len(enq.created) != tt.wantJobs {
				t.Fatalf("enqueued %d jobs, want %d", len(enq.created), tt.wantJobs)
			}
		})
	}
}

// Password reset endpoint mapping

func TestForgotPasswordHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		limiter        handlers.ResetLimiter
		resetSetUp     func(*fakeReset)
		wantStatusCode int
	}{
		{
			name:           "success_generic_message",
			body:           `{"email":"anyone@example.com"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "rate_limited",
			body:           `{"email":"anyone@example.com"}`,
			limiter:        &fakeLimiter{err: ratelimit.ErrRateLimited},
			wantStatusCode: http.StatusTooManyRequests,
		},
		{
			name:           "limiter_backend_down_fails_open",
			body:           `{"email":"anyone@example.com"}`,
			limiter:        &fakeLimiter{err: ratelimit.ErrRedisUnavailable},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid_email",
			body:           `{"email":"nope"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "internal_error",
			body: `{"email":"anyone@example.com"}`,
			resetSetUp: func(f *fakeReset) {
				f.requestFn = func(ctx context.Context, email string) (string, error) {
					return "", errors.New("db down")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			reset := &fakeReset{}

			if tt.resetSetUp != nil {
				tt.resetSetUp(reset)
			}

			h := newAuthHandler(&fakeUsers{}, reset, tt.limiter, &fakeEnqueuer{})
			r := setupRouter(http.MethodPost, "/auth/forgot-password", h.ForgotPassword)

			w := doJSON(t, r, http.MethodPost, "/auth/forgot-password", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestVerifyOtpHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		wantStatusCode int
	}{
		{"success", nil, http.StatusOK},
		{"expired_code", otp.ErrExpired, http.StatusBadRequest},
		{"wrong_code", otp.ErrInvalidCode, http.StatusBadRequest},
		{"no_active_reset", otp.ErrInvalidOrExpired, http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			reset := &fakeReset{
				verifyFn: func(ctx context.Context, email, code string) error {
					return tt.serviceErr
				},
			}

			h := newAuthHandler(&fakeUsers{}, reset, nil, &fakeEnqueuer{})
			r := setupRouter(http.MethodPost, "/auth/verify-otp", h.VerifyOtp)

			w := doJSON(t, r, http.MethodPost, "/auth/verify-otp",
				`{"email":"anyone@example.com","otp":"123456"}`)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestResetPasswordHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		wantStatusCode int
	}{
		{"success", nil, http.StatusOK},
		{"not_verified", otp.ErrNotVerified, http.StatusForbidden},
		{"session_expired", otp.ErrSessionExpired, http.StatusBadRequest},
		{"invalid_request", otp.ErrInvalidRequest, http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			reset := &fakeReset{
				resetFn: func(ctx context.Context, email, newPassword string) error {
					return tt.serviceErr
				},
			}

			h := newAuthHandler(&fakeUsers{}, reset, nil, &fakeEnqueuer{})
			r := setupRouter(http.MethodPost, "/auth/reset-password", h.ResetPassword)

			w := doJSON(t, r, http.MethodPost, "/auth/reset-password",
				`{"email":"anyone@example.com","newPassword":"longenough"}`)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
