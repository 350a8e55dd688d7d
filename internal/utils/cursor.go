package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var errBadCursor = errors.New("invalid cursor")

// JobCursor is the keyset position for the admin jobs listing, which pages
// by (updated_at DESC, id DESC).
type JobCursor struct {
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
}

func EncodeJobCursor(updatedAt time.Time, id string) (string, error) {
	raw, err := json.Marshal(JobCursor{UpdatedAt: updatedAt, ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeJobCursor(cursor string) (JobCursor, error) {
	if cursor == "" {
		return JobCursor{}, errBadCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return JobCursor{}, errBadCursor
	}

	var c JobCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return JobCursor{}, errBadCursor
	}
	if c.ID == "" || c.UpdatedAt.IsZero() {
		return JobCursor{}, errBadCursor
	}

	return c, nil
}

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
