package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType names a third-party identity provider.
type ProviderType string

const (
	ProviderTypeGoogle   ProviderType = "google"
	ProviderTypeFacebook ProviderType = "facebook"
)

// SupportedProviders lists every provider the linking flow accepts.
var SupportedProviders = []ProviderType{ProviderTypeGoogle, ProviderTypeFacebook}

// IsSupported reports whether p is one of SupportedProviders.
func (p ProviderType) IsSupported() bool {
	for _, s := range SupportedProviders {
		if p == s {
			return true
		}
	}

	return false
}

// ExternalAccount links a Profile to one identity at a provider.
// (Provider, ProviderUserID) is globally unique.
type ExternalAccount struct {
	ID             uuid.UUID
	UserID         uuid.UUID    // Owning profile.
	Provider       ProviderType // Issuing provider.
	ProviderUserID string       // Opaque id assigned by the provider.
	Email          *string      // Email reported by the provider at link time.
	AccessToken    *string      // Provider session metadata, unused for local auth.
	RefreshToken   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
