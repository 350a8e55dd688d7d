package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/devmalhar/ticketdesk/internal/auth"
	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/domain/job"
	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/jobs"
	"github.com/devmalhar/ticketdesk/internal/otp"
	"github.com/devmalhar/ticketdesk/internal/ratelimit"
	"github.com/devmalhar/ticketdesk/internal/security"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash string, skills []string) (user.User, error)
}

type JobEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// ResetLimiter guards the two code-facing endpoints. A nil limiter (or a
// down Redis) lets the request through; the flow stays correct, only
// unthrottled.
type ResetLimiter interface {
	Allow(ctx context.Context, email, ip string) error
}

type ResetService interface {
	RequestReset(ctx context.Context, email string) (string, error)
	VerifyCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	reset      ResetService
	limiter    ResetLimiter
	enqueuer   JobEnqueuer
	cfg        config.Config
}

func NewAuthHandler(
	users UserReader,
	userWriter UserWriter,
	jwtManager *auth.Manager,
	reset ResetService,
	limiter ResetLimiter,
	enqueuer JobEnqueuer,
	cfg config.Config,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		reset:      reset,
		limiter:    limiter,
		enqueuer:   enqueuer,
		cfg:        cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=6"`
	Skills   []string `json:"skills" binding:"omitempty,max=20,dive,max=50"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOtpRequest struct {
	Email string `json:"email" binding:"required,email"`
	Otp   string `json:"otp" binding:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Email, hash, req.Skills)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	h.enqueueSignupJob(cctx, u.ID, requestIDFrom(ctx))

	accessToken, expiresAt, err := h.jwt.Issue(u.ID, u.Email, u.Role, u.TokenVersion)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setAccessCookie(ctx, accessToken, expiresAt)

	ctx.JSON(http.StatusCreated, gin.H{
		"accessToken": accessToken,
		"user":        u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "No account found for that email.")
			return
		}
		RespondInternal(ctx, "Could not log in")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	accessToken, expiresAt, err := h.jwt.Issue(foundUser.ID, foundUser.Email, foundUser.Role, foundUser.TokenVersion)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setAccessCookie(ctx, accessToken, expiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"user":        foundUser,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.clearAccessCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Password reset flow

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !h.allowReset(ctx, req.Email) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	msg, err := h.reset.RequestReset(cctx, req.Email)

	if err != nil {
		if errors.Is(err, otp.ErrInvalidRequest) {
			RespondBadRequest(ctx, "Email is required.", nil)
			return
		}
		RespondInternal(ctx, "Could not process reset request")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *AuthHandler) VerifyOtp(ctx *gin.Context) {
	var req VerifyOtpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !h.allowReset(ctx, req.Email) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.reset.VerifyCode(cctx, req.Email, req.Otp)

	if err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidRequest):
			RespondBadRequest(ctx, "Email and OTP are required.", nil)
		case errors.Is(err, otp.ErrExpired):
			RespondError(ctx, http.StatusBadRequest, "code_expired", "The code has expired. Please request a new one.", nil)
		case errors.Is(err, otp.ErrInvalidCode):
			RespondError(ctx, http.StatusBadRequest, "invalid_code", "The code is incorrect.", nil)
		case errors.Is(err, otp.ErrInvalidOrExpired):
			RespondError(ctx, http.StatusBadRequest, "invalid_or_expired", "The code is invalid or expired.", nil)
		default:
			RespondInternal(ctx, "Could not verify code")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Code verified. You may now reset your password."})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.reset.ResetPassword(cctx, req.Email, req.NewPassword)

	if err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidRequest):
			RespondBadRequest(ctx, "A valid email and a password of at least 6 characters are required.", nil)
		case errors.Is(err, otp.ErrNotVerified):
			RespondForbidden(ctx, "Verify the emailed code before resetting the password.")
		case errors.Is(err, otp.ErrSessionExpired):
			RespondError(ctx, http.StatusBadRequest, "session_expired", "The reset session has expired. Please start over.", nil)
		default:
			RespondInternal(ctx, "Could not reset password")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password has been reset. Please log in."})
}

// Helper functions

func (h *AuthHandler) allowReset(ctx *gin.Context, email string) bool {
	if h.limiter == nil {
		return true
	}

	err := h.limiter.Allow(ctx.Request.Context(), email, ctx.ClientIP())

	if err == nil {
		return true
	}

	if errors.Is(err, ratelimit.ErrRateLimited) {
		RespondError(ctx, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Please try again later.", nil)
		return false
	}

	// limiter backend down: fail open
	return true
}

func (h *AuthHandler) enqueueSignupJob(ctx context.Context, userID, requestID string) {
	if h.enqueuer == nil {
		return
	}

	payload, err := jobs.EncodePayload(jobs.JobUserSignup, jobs.UserSignupPayload{
		UserID:      userID,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	})

	if err != nil {
		return
	}

	// best effort; the welcome mail is not worth failing the signup
	_, _ = h.enqueuer.Create(ctx, job.CreateRequest{
		Type:    string(jobs.JobUserSignup),
		Payload: payload,
	})
}

func (h *AuthHandler) setAccessCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		"accessToken",
		raw,
		maxAge,
		"/",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearAccessCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		"accessToken",
		"",
		-1,
		"/",
		"",
		secure,
		true,
	)
}
