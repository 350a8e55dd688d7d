package db

import (
	"context"
	"errors"
	"time"

	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser seeds the configured admin account on boot; roles are
// never self-assigned, so some admin has to exist up front.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, phone, location, bio, role, skills, token_version, is_otp_verified, created_at, updated_at)
		VALUES ($1,$2,$3,$4,'','','','admin',$5,0,false,$6,$7)`,
		uuid.NewString(), cfg.AdminEmail, hash, cfg.AdminName, []string{}, now, now,
	)

	return err
}
