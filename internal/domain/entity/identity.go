package entity

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the minimal caller identity resolved from a session token.
// It lives only in the context of the request that resolved it.
type Identity struct {
	UserID       uuid.UUID `json:"user_id"`
	CredentialID uuid.UUID `json:"-"`
	Username     string    `json:"username"`
	IssuedAt     time.Time `json:"created_at"`
}

// Session is the result of a successful login or OAuth linking.
type Session struct {
	Token   string          `json:"token"`
	Profile *ProfileSummary `json:"user"`
}
