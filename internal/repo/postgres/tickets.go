package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/ticket"
	"github.com/devmalhar/ticketdesk/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, title, description, status, priority, created_by, assigned_to, created_at, updated_at`

type TicketsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTicketsRepo(pool *pgxpool.Pool, prom *observability.Prom) *TicketsRepo {
	return &TicketsRepo{pool: pool, prom: prom}
}

func (r *TicketsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTicket(row pgx.Row) (ticket.Ticket, error) {
	var t ticket.Ticket

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.CreatedBy,
		&t.AssignedTo,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ticket.Ticket{}, ticket.ErrNotFound
		}
		return ticket.Ticket{}, err
	}

	return t, nil
}

func (r *TicketsRepo) Create(ctx context.Context, req ticket.CreateTicketRequest, createdBy string) (ticket.Ticket, error) {
	now := time.Now().UTC()

	t := ticket.Ticket{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      ticket.StatusTodo,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.observe("tickets.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO tickets (id, title, description, status, priority, created_by, assigned_to, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,'',$5,NULL,$6,$7)`,
			t.ID, t.Title, t.Description, t.Status, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return ticket.Ticket{}, err
	}

	return t, nil
}

func (r *TicketsRepo) listQuery(ctx context.Context, query string, args ...any) ([]ticket.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := []ticket.Ticket{}

	for rows.Next() {
		t, err := scanTicket(rows)

		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

// ListAll is the admin scope: every ticket, newest first.
func (r *TicketsRepo) ListAll(ctx context.Context) ([]ticket.Ticket, error) {
	var out []ticket.Ticket
	var err error

	err = r.observe("tickets.list_all", func() error {
		out, err = r.listQuery(ctx,
			`SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC, id DESC`)
		return err
	})

	return out, err
}

// ListForUser is the non-admin scope: tickets the user created or is
// assigned to.
func (r *TicketsRepo) ListForUser(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	var out []ticket.Ticket
	var err error

	err = r.observe("tickets.list_for_user", func() error {
		out, err = r.listQuery(ctx,
			`SELECT `+ticketColumns+` FROM tickets
			 WHERE created_by = $1 OR assigned_to = $1
			 ORDER BY created_at DESC, id DESC`,
			userID,
		)
		return err
	})

	return out, err
}

func (r *TicketsRepo) GetByID(ctx context.Context, id string) (ticket.Ticket, error) {
	var t ticket.Ticket
	var err error

	err = r.observe("tickets.get_by_id", func() error {
		t, err = scanTicket(r.pool.QueryRow(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
		return err
	})

	return t, err
}

func (r *TicketsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("tickets.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return ticket.ErrNotFound
	}

	return nil
}

// StatsForUser backs the profile view: counts of created, assigned and
// closed tickets for one user.
func (r *TicketsRepo) StatsForUser(ctx context.Context, userID string) (created, assigned, closed int, err error) {
	err = r.observe("tickets.stats_for_user", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT
			   COUNT(*) FILTER (WHERE created_by = $1),
			   COUNT(*) FILTER (WHERE assigned_to = $1),
			   COUNT(*) FILTER (WHERE created_by = $1 AND status = $2)
			 FROM tickets`,
			userID, ticket.StatusClosed,
		).Scan(&created, &assigned, &closed)
	})

	return created, assigned, closed, err
}
