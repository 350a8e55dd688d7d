package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo mirrors the postgres repo's contract, including the
// conditional OTP updates, so the reset flow can be tested without a DB.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User // keyed by id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

// Seed inserts a prebuilt user, for tests.
func (r *UsersRepo) Seed(u user.User) {
	r.mu.Lock()
	r.items[u.ID] = u
	r.mu.Unlock()
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return u, nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash string, skills []string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.items {
		if u.Email == email {
			return user.User{}, user.ErrEmailTaken
		}
	}

	if skills == nil {
		skills = []string{}
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "user",
		Skills:       skills,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.items[u.ID] = u
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.User, 0, len(r.items))

	for _, u := range r.items {
		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *UsersRepo) SearchByEmail(ctx context.Context, fragment string) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frag := strings.ToLower(fragment)
	out := []user.User{}

	for _, u := range r.items {
		if strings.Contains(strings.ToLower(u.Email), frag) {
			out = append(out, u)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Email < out[j].Email
	})

	return out, nil
}

func (r *UsersRepo) UpdateRoleSkills(ctx context.Context, email, role string, skills []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.items {
		if u.Email == email {
			u.Role = role
			if len(skills) > 0 {
				u.Skills = skills
			}
			u.UpdatedAt = time.Now().UTC()
			r.items[id] = u
			return nil
		}
	}

	return user.ErrNotFound
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.ProfileUpdate) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = u
	return u, nil
}

func (r *UsersRepo) SetResetOTP(ctx context.Context, id, otpHash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return user.ErrNotFound
	}

	u.ResetOTP = &otpHash
	u.ResetOTPExpiry = &expiry
	u.IsOTPVerified = false
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = u
	return nil
}

func (r *UsersRepo) ClearResetOTP(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return user.ErrNotFound
	}

	u.ResetOTP = nil
	u.ResetOTPExpiry = nil
	u.IsOTPVerified = false
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = u
	return nil
}

func (r *UsersRepo) MarkOTPVerified(ctx context.Context, id, otpHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	// same compare-and-set the SQL version enforces
	if !ok || u.ResetOTP == nil || *u.ResetOTP != otpHash ||
		u.ResetOTPExpiry == nil || !u.ResetOTPExpiry.After(now) {
		return user.ErrNotFound
	}

	u.IsOTPVerified = true
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = u
	return nil
}

func (r *UsersRepo) ResetPassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.ResetOTP = nil
	u.ResetOTPExpiry = nil
	u.IsOTPVerified = false
	u.TokenVersion++
	u.UpdatedAt = time.Now().UTC()

	r.items[id] = u
	return nil
}
