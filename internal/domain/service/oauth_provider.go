package service

import (
	"context"

	"cambio/internal/domain/entity"
)

// OAuthUser represents user information from OAuth providers
type OAuthUser struct {
	ProviderUserID string // Provider-specific user ID
	Email          string // May be empty when the provider withholds it
	DisplayName    string
	PictureURL     string
}

// OAuthToken is the result of an authorization code exchange.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
}

// OAuthProvider speaks the authorization code flow of one provider.
type OAuthProvider interface {
	// Provider returns the provider this client talks to.
	Provider() entity.ProviderType

	// AuthorizeURL builds the consent screen URL. It performs no I/O.
	AuthorizeURL(cfg entity.ProviderConfig, redirectURI, state string) string

	// Exchange trades an authorization code for provider tokens.
	Exchange(ctx context.Context, cfg entity.ProviderConfig, code, redirectURI string) (*OAuthToken, error)

	// FetchUser reads the provider's userinfo endpoint.
	FetchUser(ctx context.Context, token *OAuthToken) (*OAuthUser, error)
}

// OAuthProviderRegistry resolves provider clients by name.
type OAuthProviderRegistry interface {
	Get(provider entity.ProviderType) (OAuthProvider, bool)
}
