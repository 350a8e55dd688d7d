package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/devmalhar/ticketdesk/internal/authz"
	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/domain/job"
	"github.com/devmalhar/ticketdesk/internal/domain/ticket"
	"github.com/devmalhar/ticketdesk/internal/http/middlewares"
	"github.com/devmalhar/ticketdesk/internal/jobs"
	"github.com/gin-gonic/gin"
)

type TicketStore interface {
	Create(ctx context.Context, req ticket.CreateTicketRequest, createdBy string) (ticket.Ticket, error)
	ListAll(ctx context.Context) ([]ticket.Ticket, error)
	ListForUser(ctx context.Context, userID string) ([]ticket.Ticket, error)
	GetByID(ctx context.Context, id string) (ticket.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type TicketsHandler struct {
	tickets  TicketStore
	enqueuer JobEnqueuer
}

func NewTicketsHandler(tickets TicketStore, enqueuer JobEnqueuer) *TicketsHandler {
	return &TicketsHandler{
		tickets:  tickets,
		enqueuer: enqueuer,
	}
}

func (h *TicketsHandler) Create(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req ticket.CreateTicketRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.tickets.Create(cctx, req, actor.ID)

	if err != nil {
		RespondInternal(ctx, "Could not create ticket")
		return
	}

	h.enqueueCreatedJob(cctx, t.ID, actor.ID, requestIDFrom(ctx))

	ctx.JSON(http.StatusCreated, gin.H{"ticket": t})
}

// List returns every ticket for admins and the created-or-assigned scope
// for everyone else.
func (h *TicketsHandler) List(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var (
		items []ticket.Ticket
		err   error
	)

	if authz.CanListAllTickets(actor) {
		items, err = h.tickets.ListAll(cctx)
	} else {
		items, err = h.tickets.ListForUser(cctx, actor.ID)
	}

	if err != nil {
		RespondInternal(ctx, "Could not list tickets")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tickets": items})
}

func (h *TicketsHandler) Get(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.tickets.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			RespondNotFound(ctx, "Ticket not found.")
			return
		}
		RespondInternal(ctx, "Could not load ticket")
		return
	}

	// a denied read looks identical to a missing ticket
	if !authz.CanViewTicket(actor, t) {
		RespondNotFound(ctx, "Ticket not found.")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ticket": t})
}

func (h *TicketsHandler) Delete(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.tickets.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			RespondNotFound(ctx, "Ticket not found.")
			return
		}
		RespondInternal(ctx, "Could not delete ticket")
		return
	}

	if !authz.CanDeleteTicket(actor, t) {
		RespondForbidden(ctx, "Only the creator or an admin may delete a ticket.")
		return
	}

	err = h.tickets.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			RespondNotFound(ctx, "Ticket not found.")
			return
		}
		RespondInternal(ctx, "Could not delete ticket")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Ticket deleted."})
}

func (h *TicketsHandler) enqueueCreatedJob(ctx context.Context, ticketID, actorID, requestID string) {
	if h.enqueuer == nil {
		return
	}

	payload, err := jobs.EncodePayload(jobs.JobTicketCreated, jobs.TicketCreatedPayload{
		TicketID:    ticketID,
		ActorID:     actorID,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestID,
	})

	if err != nil {
		return
	}

	// best effort notification
	_, _ = h.enqueuer.Create(ctx, job.CreateRequest{
		Type:    string(jobs.JobTicketCreated),
		Payload: payload,
	})
}
