package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/ticket"
	"github.com/google/uuid"
)

type TicketsRepo struct {
	mu    sync.RWMutex
	items map[string]ticket.Ticket
}

func NewTicketsRepo() *TicketsRepo {
	return &TicketsRepo{
		items: make(map[string]ticket.Ticket),
	}
}

func (r *TicketsRepo) Seed(t ticket.Ticket) {
	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()
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

	r.mu.Lock()
	r.items[t.ID] = t
	r.mu.Unlock()

	return t, nil
}

func sortNewestFirst(out []ticket.Ticket) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}

func (r *TicketsRepo) ListAll(ctx context.Context) ([]ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ticket.Ticket, 0, len(r.items))

	for _, t := range r.items {
		out = append(out, t)
	}

	sortNewestFirst(out)
	return out, nil
}

func (r *TicketsRepo) ListForUser(ctx context.Context, userID string) ([]ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []ticket.Ticket{}

	for _, t := range r.items {
		if t.CreatedBy == userID || (t.AssignedTo != nil && *t.AssignedTo == userID) {
			out = append(out, t)
		}
	}

	sortNewestFirst(out)
	return out, nil
}

func (r *TicketsRepo) GetByID(ctx context.Context, id string) (ticket.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]

	if !ok {
		return ticket.Ticket{}, ticket.ErrNotFound
	}

	return t, nil
}

func (r *TicketsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ticket.ErrNotFound
	}

	delete(r.items, id)
	return nil
}

func (r *TicketsRepo) StatsForUser(ctx context.Context, userID string) (created, assigned, closed int, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.items {
		if t.CreatedBy == userID {
			created++
			if t.Status == ticket.StatusClosed {
				closed++
			}
		}
		if t.AssignedTo != nil && *t.AssignedTo == userID {
			assigned++
		}
	}

	return created, assigned, closed, nil
}
