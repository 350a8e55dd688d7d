package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devmalhar/ticketdesk/internal/cache"
	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/http/handlers"
	"github.com/devmalhar/ticketdesk/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

func seedUser(repo *memory.UsersRepo, id, email, role string) user.User {
	now := time.Now().UTC()

	u := user.User{
		ID:        id,
		Email:     email,
		Name:      "Test " + id,
		Role:      role,
		Skills:    []string{"support"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	repo.Seed(u)

	return u
}

func newUsersHandler(users *memory.UsersRepo) *handlers.UsersHandler {
	return handlers.NewUsersHandler(users, memory.NewTicketsRepo(), cache.New(30*time.Second))
}

func TestGetUsersRequiresAdmin(t *testing.T) {
	tests := []struct {
		name           string
		actorRole      string
		wantStatusCode int
	}{
		{"admin_allowed", "admin", http.StatusOK},
		{"moderator_forbidden", "moderator", http.StatusForbidden},
		{"user_forbidden", "user", http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewUsersRepo()
			seedUser(repo, "u1", "one@example.com", "user")
			seedUser(repo, "u2", "two@example.com", "user")

			h := newUsersHandler(repo)

			r := gin.New()
			r.GET("/auth/users", asIdentity("actor", "actor@example.com", tt.actorRole), h.GetUsers)

			req := httptest.NewRequest(http.MethodGet, "/auth/users", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestUpdateUser(t *testing.T) {
	tests := []struct {
		name           string
		actorRole      string
		body           string
		wantStatusCode int
	}{
		{
			name:           "admin_promotes_to_moderator",
			actorRole:      "admin",
			body:           `{"email":"one@example.com","role":"moderator","skills":["networking"]}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "non_admin_forbidden",
			actorRole:      "moderator",
			body:           `{"email":"one@example.com","role":"moderator"}`,
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "unknown_role_rejected",
			actorRole:      "admin",
			body:           `{"email":"one@example.com","role":"overlord"}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "unknown_email",
			actorRole:      "admin",
			body:           `{"email":"ghost@example.com","role":"moderator"}`,
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewUsersRepo()
			seedUser(repo, "u1", "one@example.com", "user")

			h := newUsersHandler(repo)

			r := gin.New()
			r.PUT("/auth/update-user", asIdentity("actor", "actor@example.com", tt.actorRole), h.UpdateUser)

			w := doJSON(t, r, http.MethodPut, "/auth/update-user", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				u, err := repo.GetByEmail(context.Background(), "one@example.com")
				if err != nil {
					t.Fatalf("lookup: %v", err)
				}
				if u.Role != "moderator" {
					t.Fatalf("role = %q after update", u.Role)
				}
			}
		})
	}
}

func TestSearchUsersReturnsTrimmedView(t *testing.T) {
	repo := memory.NewUsersRepo()
	seedUser(repo, "u1", "alice@example.com", "user")
	seedUser(repo, "u2", "alicia@example.com", "moderator")
	seedUser(repo, "u3", "bob@example.com", "user")

	h := newUsersHandler(repo)

	r := gin.New()
	r.GET("/auth/user/:query", asIdentity("u3", "bob@example.com", "user"), h.SearchUsers)

	req := httptest.NewRequest(http.MethodGet, "/auth/user/alic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if len(resp.Users) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Users))
	}

	// the trimmed view must not leak ids or anything password shaped
	for _, entry := range resp.Users {
		if _, ok := entry["id"]; ok {
			t.Fatal("search result leaks user id")
		}
		if _, ok := entry["email"]; !ok {
			t.Fatal("search result missing email")
		}
	}
}

func TestSearchUsersServedFromCache(t *testing.T) {
	repo := memory.NewUsersRepo()
	seedUser(repo, "u1", "alice@example.com", "user")

	h := newUsersHandler(repo)

	r := gin.New()
	r.GET("/auth/user/:query", asIdentity("u1", "alice@example.com", "user"), h.SearchUsers)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/auth/user/alice", nil))

	// a user added after the first query is invisible until the TTL lapses
	seedUser(repo, "u2", "alice2@example.com", "user")

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/auth/user/alice", nil))

	var resp struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Users) != 1 {
		t.Fatalf("got %d results, want the 1 cached result", len(resp.Users))
	}
}

func TestUpdateProfilePatchesOnlyProvidedFields(t *testing.T) {
	repo := memory.NewUsersRepo()
	seeded := seedUser(repo, "u1", "alice@example.com", "user")

	h := newUsersHandler(repo)

	r := gin.New()
	r.PUT("/auth/profile", asIdentity("u1", "alice@example.com", "user"), h.UpdateProfile)

	w := doJSON(t, r, http.MethodPut, "/auth/profile", `{"bio":"On call this week"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	u, _ := repo.GetByID(context.Background(), "u1")

	if u.Bio != "On call this week" {
		t.Fatalf("bio = %q", u.Bio)
	}
	if u.Name != seeded.Name {
		t.Fatal("name changed though it was not in the patch")
	}
}

func TestGetProfileIncludesTicketStats(t *testing.T) {
	users := memory.NewUsersRepo()
	seedUser(users, "u1", "alice@example.com", "user")

	tickets := memory.NewTicketsRepo()
	seedTicket(tickets, "t1", "u1")
	seedTicket(tickets, "t2", "u1")
	seedTicket(tickets, "t3", "someone-else")

	h := handlers.NewUsersHandler(users, tickets, cache.New(time.Second))

	r := gin.New()
	r.GET("/auth/profile", asIdentity("u1", "alice@example.com", "user"), h.GetProfile)

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Stats struct {
			TicketsCreated int `json:"ticketsCreated"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Stats.TicketsCreated != 2 {
		t.Fatalf("ticketsCreated = %d, want 2", resp.Stats.TicketsCreated)
	}
}
