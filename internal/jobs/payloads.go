package jobs

import "time"

// Payloads stay minimal and ID-based; the worker loads details from the DB
// so a stale payload never ships stale email content.

type UserSignupPayload struct {
	UserID      string    `json:"userId"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"` // correlation
}

type TicketCreatedPayload struct {
	TicketID    string    `json:"ticketId"`
	ActorID     string    `json:"actorId,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}
