package jobs

import (
	"testing"
	"time"

	"github.com/devmalhar/ticketdesk/internal/domain/job"
)

func TestEncodeDecodeUserSignup(t *testing.T) {
	payload := UserSignupPayload{
		UserID:      "user-123",
		RequestedAt: time.Now().UTC(),
	}

	b, err := EncodePayload(JobUserSignup, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	j := job.New(job.CreateRequest{Type: string(JobUserSignup), Payload: b})

	decoded, err := DecodePayload(j)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(UserSignupPayload)
	if !ok {
		t.Fatalf("expected UserSignupPayload, got %T", decoded)
	}

	if p.UserID != payload.UserID {
		t.Fatalf("expected userId %s, got %s", payload.UserID, p.UserID)
	}
}

func TestEncodePayloadTypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobUserSignup, TicketCreatedPayload{
		TicketID: "t1",
		ActorID:  "u1",
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if err != ErrPayloadTypeMismatch {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	j := job.New(job.CreateRequest{Type: "no.such.job", Payload: []byte(`{}`)})

	_, err := DecodePayload(j)
	if err != ErrInvalidJobType {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
}

func TestValidatePayloadRequiredIDs(t *testing.T) {
	if err := ValidatePayload(JobUserSignup, UserSignupPayload{UserID: " "}); err == nil {
		t.Fatalf("expected error for blank user id")
	}
	if err := ValidatePayload(JobTicketCreated, TicketCreatedPayload{TicketID: ""}); err == nil {
		t.Fatalf("expected error for blank ticket id")
	}
	if err := ValidatePayload(JobTicketCreated, TicketCreatedPayload{TicketID: "t1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
