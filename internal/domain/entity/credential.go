// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Credential is the authentication record of an identity.
// It holds at most one session token; issuing a new one overwrites the old.
type Credential struct {
	ID           uuid.UUID // Immutable identity key generated at creation.
	Username     string    // Unique, stored lowercase. Either an email or a handle.
	PasswordHash string    // Self-describing hash, see the auth package for formats.
	RecoveryCode *string   // Pending single-use reset code, nil when none is outstanding.
	Token        *string   // Current opaque session token, nil when no session was ever issued.
	CreatedAt    time.Time
	UpdatedAt    time.Time // Doubles as the issuance time of Token.
}

// TokenExpiresAt returns the moment the current token stops being valid.
func (c *Credential) TokenExpiresAt(ttl time.Duration) time.Time {
	return c.UpdatedAt.Add(ttl)
}

// HasRecoveryCode reports whether a reset is pending.
func (c *Credential) HasRecoveryCode() bool {
	return c.RecoveryCode != nil && *c.RecoveryCode != ""
}
