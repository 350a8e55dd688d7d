package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, phone, location, bio, role, skills,
	token_version, reset_otp, reset_otp_expiry, is_otp_verified, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&u.Location,
		&u.Bio,
		&u.Role,
		&u.Skills,
		&u.TokenVersion,
		&u.ResetOTP,
		&u.ResetOTPExpiry,
		&u.IsOTPVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		))
		return err
	})

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash string, skills []string) (user.User, error) {
	now := time.Now().UTC()

	if skills == nil {
		skills = []string{}
	}

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "user",
		Skills:       skills,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, phone, location, bio, role, skills, token_version, is_otp_verified, created_at, updated_at)
			 VALUES ($1,$2,$3,'','','','',$4,$5,0,false,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, u.Role, u.Skills, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)

			if err != nil {
				return err
			}

			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []user.User{}
	}

	return out, nil
}

// SearchByEmail does a case-insensitive partial match.
func (r *UsersRepo) SearchByEmail(ctx context.Context, fragment string) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.search_by_email", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE email ILIKE '%' || $1 || '%' ORDER BY email ASC LIMIT 50`,
			fragment,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)

			if err != nil {
				return err
			}

			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []user.User{}
	}

	return out, nil
}

// UpdateRoleSkills is the admin path. Empty skills keeps the existing set.
func (r *UsersRepo) UpdateRoleSkills(ctx context.Context, email, role string, skills []string) error {
	if skills == nil {
		skills = []string{}
	}

	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.update_role_skills", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			 SET role = $2,
			     skills = CASE WHEN cardinality($3::text[]) > 0 THEN $3::text[] ELSE skills END,
			     updated_at = NOW()
			 WHERE email = $1`,
			email, role, skills,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// UpdateProfile patches only the allow-listed fields; nil pointers leave
// the column untouched.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.ProfileUpdate) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.update_profile", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET name = COALESCE($2, name),
			     phone = COALESCE($3, phone),
			     location = COALESCE($4, location),
			     bio = COALESCE($5, bio),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			id, p.Name, p.Phone, p.Location, p.Bio,
		))
		return err
	})

	return u, err
}

// SetResetOTP installs a fresh code hash and window, and always drops any
// verified flag left over from a previous code.
func (r *UsersRepo) SetResetOTP(ctx context.Context, id, otpHash string, expiry time.Time) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.set_reset_otp", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			 SET reset_otp = $2,
			     reset_otp_expiry = $3,
			     is_otp_verified = false,
			     updated_at = NOW()
			 WHERE id = $1`,
			id, otpHash, expiry,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// ClearResetOTP returns the record to the no-active-reset state. The three
// fields clear together.
func (r *UsersRepo) ClearResetOTP(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.clear_reset_otp", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			 SET reset_otp = NULL,
			     reset_otp_expiry = NULL,
			     is_otp_verified = false,
			     updated_at = NOW()
			 WHERE id = $1`,
			id,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// MarkOTPVerified flips the verified flag only while the matched hash is
// still the stored one and the window is open, so the check in the service
// and this write form a single compare-and-set.
func (r *UsersRepo) MarkOTPVerified(ctx context.Context, id, otpHash string, now time.Time) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.mark_otp_verified", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			 SET is_otp_verified = true,
			     updated_at = NOW()
			 WHERE id = $1 AND reset_otp = $2 AND reset_otp_expiry > $3`,
			id, otpHash, now,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// ResetPassword stores the new hash and clears the whole reset state in one
// statement. token_version is bumped so a future revocation check can cut
// off tokens issued before the reset.
func (r *UsersRepo) ResetPassword(ctx context.Context, id, passwordHash string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.reset_password", func() error {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users
			 SET password_hash = $2,
			     reset_otp = NULL,
			     reset_otp_expiry = NULL,
			     is_otp_verified = false,
			     token_version = token_version + 1,
			     updated_at = NOW()
			 WHERE id = $1`,
			id, passwordHash,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}
