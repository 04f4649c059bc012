package entity

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the business-facing identity of a user.
type Profile struct {
	ID             uuid.UUID    // The Global Unique Identifier for the user.
	AuthID         *uuid.UUID   // Credential owning this profile; nil until credentials exist.
	Email          *string      // Unique when present.
	Names          *string      // Given names.
	Lastnames      *string      // Family names.
	ProfileImage   *string      // Avatar URL.
	DocumentNumber *string      // Unique when present.
	DocumentType   DocumentType // Kind of DocumentNumber.
	Phone          *int64       // Phone number without country code.
	CodePhone      *string      // Country dialing code.
	Role           Role         // Business role, defaults to client.
	IsAgent        bool         // Whether the user operates as an agent.
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasCredential reports whether the profile is attached to a credential.
func (p *Profile) HasCredential() bool {
	return p.AuthID != nil && *p.AuthID != uuid.Nil
}

// ProfileSummary is the public view of a profile returned with sessions.
type ProfileSummary struct {
	ID             uuid.UUID `json:"id"`
	Names          *string   `json:"names"`
	Lastnames      *string   `json:"lastnames"`
	Email          *string   `json:"email"`
	ProfileImage   *string   `json:"profile_image"`
	DocumentNumber *string   `json:"document_number"`
}

// Summary projects the profile onto its public view.
func (p *Profile) Summary() *ProfileSummary {
	return &ProfileSummary{
		ID:             p.ID,
		Names:          p.Names,
		Lastnames:      p.Lastnames,
		Email:          p.Email,
		ProfileImage:   p.ProfileImage,
		DocumentNumber: p.DocumentNumber,
	}
}
