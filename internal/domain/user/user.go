package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

const (
	MaxNameLen     = 50
	MaxPhoneLen    = 20
	MaxLocationLen = 100
	MaxBioLen      = 300
)

type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"` // never expose hash in JSON
	Name         string   `json:"name"`
	Phone        string   `json:"phone,omitempty"`
	Location     string   `json:"location,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Role         string   `json:"role"`
	Skills       []string `json:"skills"`
	TokenVersion int      `json:"-"`
	// Password-reset state. ResetOTP holds the hash of the active code,
	// never the plaintext. The two reset fields are set and cleared together.
	ResetOTP       *string    `json:"-"`
	ResetOTPExpiry *time.Time `json:"-"`
	IsOTPVerified  bool       `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// ProfileUpdate carries the only fields a user may change on their own
// record. Role, email and skills go through the admin path.
type ProfileUpdate struct {
	Name     *string `json:"name" binding:"omitempty,max=50"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Location *string `json:"location" binding:"omitempty,max=100"`
	Bio      *string `json:"bio" binding:"omitempty,max=300"`
}

// SearchView is the trimmed shape returned by the user search endpoint.
type SearchView struct {
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	Skills []string `json:"skills"`
}

func (u User) SearchResult() SearchView {
	return SearchView{Email: u.Email, Role: u.Role, Skills: u.Skills}
}
