package authz

import "github.com/devmalhar/ticketdesk/internal/domain/ticket"

// Role is a closed set; comparisons happen here and nowhere else so the
// endpoints stay free of ad hoc string checks.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleModerator, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Actor is the identity resolved from a validated access token for the
// current request.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

// CanListAllTickets: admin sees every ticket, everyone else gets the
// created-or-assigned scope applied at the repo.
func CanListAllTickets(a Actor) bool {
	return a.Role == RoleAdmin
}

// CanViewTicket: moderators and admins may read any ticket; a plain user
// only a ticket they created. Callers translate a deny into not-found so
// ticket existence never leaks.
func CanViewTicket(a Actor, t ticket.Ticket) bool {
	if a.Role != RoleUser {
		return true
	}
	return t.CreatedBy == a.ID
}

// CanDeleteTicket: the creator or any admin.
func CanDeleteTicket(a Actor, t ticket.Ticket) bool {
	return a.Role == RoleAdmin || t.CreatedBy == a.ID
}

// CanManageUsers covers role/skills updates on other users.
func CanManageUsers(a Actor) bool {
	return a.Role == RoleAdmin
}

func CanListUsers(a Actor) bool {
	return a.Role == RoleAdmin
}
