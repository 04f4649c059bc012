package usecase

import (
	"context"

	"cambio/internal/domain/entity"
)

// AuthorizeInput defines the data required to start an OAuth flow.
type AuthorizeInput struct {
	Provider    string
	RedirectURI string // Optional, overrides the configured callback.
	State       string
}

// CallbackInput defines the data returned by a provider to the callback.
type CallbackInput struct {
	Provider    string
	Code        string
	RedirectURI string // Must match the one used to build the authorize URL.
}

// OAuthUsecase defines the interface for third-party sign-in.
type OAuthUsecase interface {
	// AuthorizeURL builds the provider consent URL. It performs no writes.
	AuthorizeURL(ctx context.Context, input *AuthorizeInput) (string, error)
	// HandleCallback exchanges the code, resolves the local identity and issues a session.
	HandleCallback(ctx context.Context, input *CallbackInput) (*entity.Session, error)
}
