package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/devmalhar/ticketdesk/internal/authz"
	"github.com/devmalhar/ticketdesk/internal/cache"
	"github.com/devmalhar/ticketdesk/internal/config"
	"github.com/devmalhar/ticketdesk/internal/domain/user"
	"github.com/devmalhar/ticketdesk/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	SearchByEmail(ctx context.Context, fragment string) ([]user.User, error)
	UpdateRoleSkills(ctx context.Context, email, role string, skills []string) error
	UpdateProfile(ctx context.Context, id string, p user.ProfileUpdate) (user.User, error)
}

type TicketStatsReader interface {
	StatsForUser(ctx context.Context, userID string) (created, assigned, closed int, err error)
}

type UsersHandler struct {
	users       UserStore
	ticketStats TicketStatsReader
	searchCache *cache.Cache
}

func NewUsersHandler(users UserStore, ticketStats TicketStatsReader, searchCache *cache.Cache) *UsersHandler {
	return &UsersHandler{
		users:       users,
		ticketStats: ticketStats,
		searchCache: searchCache,
	}
}

type UpdateUserRequest struct {
	Email  string   `json:"email" binding:"required,email"`
	Role   string   `json:"role" binding:"required"`
	Skills []string `json:"skills" binding:"omitempty,max=20,dive,max=50"`
}

// UpdateUser is the admin path for changing another user's role and skills.
func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !authz.CanManageUsers(actor) {
		RespondForbidden(ctx, "Only admins may update users.")
		return
	}

	var req UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if _, ok := authz.ParseRole(req.Role); !ok {
		RespondBadRequest(ctx, "Role must be one of user, moderator, admin.", gin.H{"role": req.Role})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.users.UpdateRoleSkills(cctx, req.Email, req.Role, req.Skills)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "No user with that email.")
			return
		}
		RespondInternal(ctx, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User updated."})
}

func (h *UsersHandler) GetUsers(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !authz.CanListUsers(actor) {
		RespondForbidden(ctx, "Only admins may list users.")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.users.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

// SearchUsers matches email fragments for any authenticated caller and
// returns a trimmed view. Results sit in the cache briefly, so a burst of
// identical queries costs one DB round trip.
func (h *UsersHandler) SearchUsers(ctx *gin.Context) {
	query := strings.TrimSpace(ctx.Param("query"))

	if query == "" {
		RespondBadRequest(ctx, "Search query is required.", nil)
		return
	}

	cacheKey := "user_search:" + strings.ToLower(query)

	if h.searchCache != nil {
		if v, ok := h.searchCache.Get(cacheKey); ok {
			if views, ok := v.([]user.SearchView); ok {
				ctx.JSON(http.StatusOK, gin.H{"users": views})
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	found, err := h.users.SearchByEmail(cctx, query)

	if err != nil {
		RespondInternal(ctx, "Could not search users")
		return
	}

	views := make([]user.SearchView, 0, len(found))

	for _, u := range found {
		views = append(views, u.SearchResult())
	}

	if h.searchCache != nil {
		h.searchCache.Set(cacheKey, views)
	}

	ctx.JSON(http.StatusOK, gin.H{"users": views})
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found.")
			return
		}
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// GetProfile returns the caller's record plus their ticket counts.
func (h *UsersHandler) GetProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found.")
			return
		}
		RespondInternal(ctx, "Could not load profile")
		return
	}

	created, assigned, closed, err := h.ticketStats.StatsForUser(cctx, userID)

	if err != nil {
		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": u,
		"stats": gin.H{
			"ticketsCreated":  created,
			"ticketsAssigned": assigned,
			"ticketsClosed":   closed,
		},
	})
}

func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req user.ProfileUpdate

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, userID, req)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found.")
			return
		}
		RespondInternal(ctx, "Could not update profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}
