package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devmalhar/ticketdesk/internal/domain/job"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobUserSignup:
		_, ok := payload.(UserSignupPayload)

		if !ok {
			_, ok2 := payload.(*UserSignupPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}

	case JobTicketCreated:
		_, ok := payload.(TicketCreatedPayload)

		if !ok {
			_, ok2 := payload.(*TicketCreatedPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals job.Payload into the correct typed payload struct.
func DecodePayload(j job.Job) (any, error) {
	t := JobType(j.Type)

	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobUserSignup:
		var p UserSignupPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	case JobTicketCreated:
		var p TicketCreatedPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobUserSignup:
		var p UserSignupPayload
		switch v := payload.(type) {
		case UserSignupPayload:
			p = v
		case *UserSignupPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.UserID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	case JobTicketCreated:
		var p TicketCreatedPayload
		switch v := payload.(type) {
		case TicketCreatedPayload:
			p = v
		case *TicketCreatedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.TicketID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
