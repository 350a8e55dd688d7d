package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/security"
)

var (
	ErrInvalidRequest   = errors.New("invalid reset request")
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	ErrExpired          = errors.New("code expired")
	ErrInvalidCode      = errors.New("invalid code")
	ErrNotVerified      = errors.New("code not verified")
	ErrSessionExpired   = errors.New("reset session expired")
)

// GenericRequestMessage is returned for every RequestReset call so the
// response never reveals whether the email is registered.
const GenericRequestMessage = "If an account with that email exists, a password reset code has been sent."

const MinPasswordLen = 6

// UserStore is the slice of the users repo the reset flow needs. The OTP
// mutations are conditional single-statement updates so the check-then-act
// between loading the record and writing the transition cannot clobber a
// newer code.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	SetResetOTP(ctx context.Context, id, otpHash string, expiry time.Time) error
	ClearResetOTP(ctx context.Context, id string) error
	MarkOTPVerified(ctx context.Context, id, otpHash string, now time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
}

// CodeSender delivers the plaintext code out-of-band. The plaintext is
// never persisted.
type CodeSender interface {
	SendPasswordResetCode(ctx context.Context, email, name, code string) error
}

type Config struct {
	CodeTTL time.Duration // validity window of the code itself
	Grace   time.Duration // extra window between verify and reset
	Now     func() time.Time
}

type Service struct {
	cfg    Config
	users  UserStore
	mailer CodeSender
	log    *slog.Logger
}

func NewService(cfg Config, users UserStore, mailer CodeSender, log *slog.Logger) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		cfg:    cfg,
		users:  users,
		mailer: mailer,
		log:    log,
	}
}

// RequestReset issues a fresh 6-digit code for the account behind email.
// The returned message is identical whether or not the account exists.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", ErrInvalidRequest
	}

	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// no mutation, same message
			return GenericRequestMessage, nil
		}
		return "", err
	}

	code, err := generateCode()

	if err != nil {
		return "", err
	}

	expiry := s.cfg.Now().UTC().Add(s.cfg.CodeTTL)

	// SetResetOTP also forces is_otp_verified back to false, so a stale
	// "verified" session from an earlier code cannot carry over.
	err = s.users.SetResetOTP(ctx, u.ID, HashCode(code), expiry)

	if err != nil {
		return "", err
	}

	name := u.Name
	if name == "" {
		name = u.Email
	}

	// Delivery failures are the collaborator's problem; the caller still
	// gets the generic message.
	if err := s.mailer.SendPasswordResetCode(ctx, u.Email, name, code); err != nil {
		s.log.Error("reset code delivery failed", "err", err)
	}

	return GenericRequestMessage, nil
}

// VerifyCode checks the submitted code and, on a match inside the window,
// flips is_otp_verified. The otp fields are kept so ResetPassword can still
// bound the session.
func (s *Service) VerifyCode(ctx context.Context, email, code string) error {
	if email == "" || code == "" {
		return ErrInvalidRequest
	}

	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return err
	}

	if u.ResetOTP == nil || u.ResetOTPExpiry == nil {
		return ErrInvalidOrExpired
	}

	now := s.cfg.Now().UTC()

	if now.After(*u.ResetOTPExpiry) {
		if err := s.users.ClearResetOTP(ctx, u.ID); err != nil {
			return err
		}
		return ErrExpired
	}

	if !codeMatches(code, *u.ResetOTP) {
		return ErrInvalidCode
	}

	// Conditional on the hash we just matched still being the stored one
	// and the window still being open.
	err = s.users.MarkOTPVerified(ctx, u.ID, *u.ResetOTP, now)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return err
	}

	return nil
}

// ResetPassword finishes the flow. The grace window bounds how long a
// verified-but-unused session stays usable past the code's own expiry.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if email == "" || newPassword == "" {
		return ErrInvalidRequest
	}

	if len(newPassword) < MinPasswordLen {
		return ErrInvalidRequest
	}

	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidRequest
		}
		return err
	}

	if !u.IsOTPVerified {
		return ErrNotVerified
	}

	now := s.cfg.Now().UTC()

	if u.ResetOTPExpiry == nil || now.After(u.ResetOTPExpiry.Add(s.cfg.Grace)) {
		if err := s.users.ClearResetOTP(ctx, u.ID); err != nil {
			return err
		}
		return ErrSessionExpired
	}

	hash, err := security.HashPassword(newPassword)

	if err != nil {
		return err
	}

	// Stores the new hash and clears all three otp fields in one statement;
	// a replay needs a fresh RequestReset.
	return s.users.ResetPassword(ctx, u.ID, hash)
}

// HashCode mirrors the password policy for codes at rest: a leaked
// database must not reveal usable codes.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func codeMatches(submitted, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(submitted)), []byte(storedHash)) == 1
}

// generateCode draws a 6-digit code from crypto/rand, always in
// [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))

	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
