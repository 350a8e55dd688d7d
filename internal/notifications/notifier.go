package notifications

import "context"

type SendWelcomeInput struct {
	Email  string
	Name   string
	UserID string
}

type SendTicketCreatedInput struct {
	Email       string
	Name        string
	TicketID    string
	TicketTitle string
}

type Notifier interface {
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
	SendTicketCreated(ctx context.Context, input SendTicketCreatedInput) error
	SendPasswordResetCode(ctx context.Context, email, name, code string) error
}
