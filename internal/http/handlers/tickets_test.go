package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/ticket"
	"github.com/devmalhar/ticketdesk/internal/http/handlers"
	"github.com/devmalhar/ticketdesk/internal/http/middlewares"
	"github.com/devmalhar/ticketdesk/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

// asIdentity injects a validated identity the way RequireAuth would.

func asIdentity(userID, email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.CtxUserID, userID)
		c.Set(middlewares.CtxEmail, email)
		c.Set(middlewares.CtxRole, role)
		c.Next()
	}
}

func seedTicket(repo *memory.TicketsRepo, id, createdBy string) ticket.Ticket {
	now := time.Now().UTC()

	t := ticket.Ticket{
		ID:          id,
		Title:       "Printer on fire",
		Description: "The third floor printer is actually on fire.",
		Status:      ticket.StatusTodo,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	repo.Seed(t)

	return t
}

func TestGetTicketVisibility(t *testing.T) {
	tests := []struct {
		name           string
		actorID        string
		actorRole      string
		ticketID       string
		wantStatusCode int
	}{
		{"creator_reads_own", "alice", "user", "t-alice", http.StatusOK},
		// a foreign ticket must look missing, not forbidden
		{"user_reads_foreign", "bob", "user", "t-alice", http.StatusNotFound},
		{"moderator_reads_foreign", "bob", "moderator", "t-alice", http.StatusOK},
		{"admin_reads_foreign", "bob", "admin", "t-alice", http.StatusOK},
		{"missing_ticket", "alice", "user", "t-none", http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewTicketsRepo()
			seedTicket(repo, "t-alice", "alice")

			h := handlers.NewTicketsHandler(repo, &fakeEnqueuer{})

			r := gin.New()
			r.GET("/tickets/:id", asIdentity(tt.actorID, tt.actorID+"@example.com", tt.actorRole), h.Get)

			req := httptest.NewRequest(http.MethodGet, "/tickets/"+tt.ticketID, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteTicketAuthorization(t *testing.T) {
	tests := []struct {
		name           string
		actorID        string
		actorRole      string
		wantStatusCode int
		wantDeleted    bool
	}{
		{"creator_deletes", "alice", "user", http.StatusOK, true},
		{"other_user_forbidden", "bob", "user", http.StatusForbidden, false},
		{"moderator_forbidden", "bob", "moderator", http.StatusForbidden, false},
		{"admin_deletes", "bob", "admin", http.StatusOK, true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewTicketsRepo()
			seedTicket(repo, "t-alice", "alice")

			h := handlers.NewTicketsHandler(repo, &fakeEnqueuer{})

			r := gin.New()
			r.DELETE("/tickets/:id", asIdentity(tt.actorID, tt.actorID+"@example.com", tt.actorRole), h.Delete)

			req := httptest.NewRequest(http.MethodDelete, "/tickets/t-alice", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			_, err := repo.GetByID(context.Background(), "t-alice")

			gone := errors.Is(err, ticket.ErrNotFound)
			if gone != tt.wantDeleted {
				t.Fatalf("ticket deleted=%v, want %v", gone, tt.wantDeleted)
			}
		})
	}
}

func TestListTicketsScope(t *testing.T) {
	repo := memory.NewTicketsRepo()
	seedTicket(repo, "t-alice", "alice")
	seedTicket(repo, "t-bob", "bob")
	seedTicket(repo, "t-carol", "carol")

	tests := []struct {
		name      string
		actorID   string
		actorRole string
		wantCount int
	}{
		{"admin_sees_all", "admin-1", "admin", 3},
		{"user_sees_own_scope", "alice", "user", 1},
		{"moderator_sees_own_scope", "bob", "moderator", 1},
		{"stranger_sees_nothing", "dave", "user", 0},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewTicketsHandler(repo, &fakeEnqueuer{})

			r := gin.New()
			r.GET("/tickets", asIdentity(tt.actorID, tt.actorID+"@example.com", tt.actorRole), h.List)

			req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
			}

			var resp struct {
				Tickets []ticket.Ticket `json:"tickets"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if len(resp.Tickets) != tt.wantCount {
				t.Fatalf("got %d tickets, want %d", len(resp.Tickets), tt.wantCount)
			}
		})
	}
}

func TestCreateTicketEnqueuesJob(t *testing.T) {
	repo := memory.NewTicketsRepo()
	enq := &fakeEnqueuer{}

	h := handlers.NewTicketsHandler(repo, enq)

	r := gin.New()
	r.POST("/tickets", asIdentity("alice", "alice@example.com", "user"), h.Create)

	w := doJSON(t, r, http.MethodPost, "/tickets",
		`{"title":"VPN broken","description":"Cannot connect since this morning."}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if len(enq.created) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(enq.created))
	}
	if enq.created[0].Type != "ticket.created" {
		t.Fatalf("job type = %q", enq.created[0].Type)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	repo := memory.NewTicketsRepo()
	h := handlers.NewTicketsHandler(repo, &fakeEnqueuer{})

	r := gin.New()
	r.POST("/tickets", asIdentity("alice", "alice@example.com", "user"), h.Create)

	// title below the minimum length
	w := doJSON(t, r, http.MethodPost, "/tickets", `{"title":"ab","description":"x"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}
