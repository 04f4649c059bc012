// Package oauth implements the authorization code flow for the supported identity providers.
package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"cambio/config"
	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/oauth2"
)

// Params defines the dependencies of the provider registry.
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

type registry struct {
	providers map[entity.ProviderType]service.OAuthProvider
}

// NewRegistry builds the clients of every supported provider.
// All outbound calls share one http.Client bounded by oauth.httpTimeout.
func NewRegistry(params Params) service.OAuthProviderRegistry {
	client := &http.Client{Timeout: params.Config.OAuth.HTTPTimeout}

	return newRegistry(
		newGoogleProvider(client, params.Logger),
		newFacebookProvider(client, params.Logger),
	)
}

func newRegistry(providers ...service.OAuthProvider) *registry {
	r := &registry{providers: make(map[entity.ProviderType]service.OAuthProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Provider()] = p
	}

	return r
}

// Get resolves the client of provider.
func (r *registry) Get(provider entity.ProviderType) (service.OAuthProvider, bool) {
	p, ok := r.providers[provider]

	return p, ok
}

// clientConfig maps stored provider settings onto an oauth2.Config.
func clientConfig(cfg entity.ProviderConfig, endpoint oauth2.Endpoint, redirectURI string, scopes []string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = cfg.RedirectURI
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

// exchangeCode runs the token request through client so the call honours its timeout.
// Rejections by the provider map to ErrProviderExchangeFailed; transport failures stay internal.
func exchangeCode(ctx context.Context, client *http.Client, conf *oauth2.Config, code string) (*service.OAuthToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			detail := retrieveErr.ErrorCode
			if detail == "" {
				detail = strings.TrimSpace(string(retrieveErr.Body))
			}

			return nil, errors.Wrap(domainerrors.ErrProviderExchangeFailed.WithDetails(detail), "token endpoint rejected code")
		}
		if strings.Contains(err.Error(), "missing access_token") {
			return nil, errors.Wrap(domainerrors.ErrProviderExchangeFailed.WithDetails("no access token returned"), "token endpoint")
		}

		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}
	if tok.AccessToken == "" {
		return nil, errors.Wrap(domainerrors.ErrProviderExchangeFailed.WithDetails("no access token returned"), "token endpoint")
	}

	return &service.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}
