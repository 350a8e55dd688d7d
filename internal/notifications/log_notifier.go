package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier stands in for the real mail provider: it writes the message
// to the log. The env knobs below simulate a slow or failing provider.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) simulate(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}

func (n *LogNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	log.Printf("notification.welcome email=%s name=%s user=%s", in.Email, in.Name, in.UserID)
	return nil
}

func (n *LogNotifier) SendTicketCreated(ctx context.Context, in SendTicketCreatedInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	log.Printf("notification.ticket_created email=%s ticket=%s title=%q", in.Email, in.TicketID, in.TicketTitle)
	return nil
}

func (n *LogNotifier) SendPasswordResetCode(ctx context.Context, email, name, code string) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	// The plaintext code only ever exists here and in the user's inbox.
	log.Printf("notification.password_reset email=%s name=%s code=%s", email, name, code)
	return nil
}
