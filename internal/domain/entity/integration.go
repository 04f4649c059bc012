package entity

import "github.com/google/uuid"

// IntegrationType classifies a third-party integration record.
type IntegrationType string

const (
	IntegrationTypeWebhook IntegrationType = "webhook"
	IntegrationTypeAPI     IntegrationType = "api"
	IntegrationTypeOAuth   IntegrationType = "oauth"
)

// Integration is a stored third-party configuration, keyed by provider.
type Integration struct {
	ID          uuid.UUID
	Name        string
	Provider    string
	Type        IntegrationType
	Config      ProviderConfig
	Description *string
	IsActive    bool
}

// ProviderConfig holds the OAuth client settings of a provider.
type ProviderConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

// IsComplete reports whether the client credentials are present.
func (c ProviderConfig) IsComplete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
