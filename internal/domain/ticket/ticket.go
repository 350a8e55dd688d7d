package ticket

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("ticket not found")

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

type Ticket struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	CreatedBy   string    `json:"createdBy"` // immutable once set
	AssignedTo  *string   `json:"assignedTo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateTicketRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=120"`
	Description string `json:"description" binding:"required,max=2000"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Limit int
}
