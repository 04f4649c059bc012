package oauth

import (
	"context"
	"log/slog"
	"net/http"

	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var googleScopes = []string{"openid", "email", "profile"}

type googleProvider struct {
	client   *http.Client
	logger   *slog.Logger
	endpoint oauth2.Endpoint
	// apiEndpoint overrides the userinfo API base URL when set.
	apiEndpoint string
}

func newGoogleProvider(client *http.Client, logger *slog.Logger) *googleProvider {
	endpoint := google.Endpoint
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &googleProvider{
		client:   client,
		logger:   logger,
		endpoint: endpoint,
	}
}

func (p *googleProvider) Provider() entity.ProviderType {
	return entity.ProviderTypeGoogle
}

// AuthorizeURL asks for offline access and forces the consent screen so a refresh token is issued.
func (p *googleProvider) AuthorizeURL(cfg entity.ProviderConfig, redirectURI, state string) string {
	conf := clientConfig(cfg, p.endpoint, redirectURI, googleScopes)

	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *googleProvider) Exchange(ctx context.Context, cfg entity.ProviderConfig, code, redirectURI string) (*service.OAuthToken, error) {
	return exchangeCode(ctx, p.client, clientConfig(cfg, p.endpoint, redirectURI, googleScopes), code)
}

// FetchUser reads the oauth2/v2 userinfo resource.
func (p *googleProvider) FetchUser(ctx context.Context, token *service.OAuthToken) (*service.OAuthUser, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.AccessToken}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if p.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.apiEndpoint))
	}

	api, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create google userinfo client")
	}

	info, err := api.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		p.logger.WarnContext(ctx, "Google userinfo request failed", slog.Any("error", err))

		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= http.StatusBadRequest && apiErr.Code < http.StatusInternalServerError {
			return nil, errors.Wrapf(domainerrors.ErrProviderExchangeFailed.WithDetails("userinfo request rejected"),
				"google userinfo status %d", apiErr.Code)
		}

		return nil, errors.Wrap(err, "failed to fetch google userinfo")
	}
	if info.Id == "" {
		return nil, errors.Wrap(domainerrors.ErrProviderExchangeFailed.WithDetails("userinfo without id"), "google userinfo")
	}

	return &service.OAuthUser{
		ProviderUserID: info.Id,
		Email:          info.Email,
		DisplayName:    info.Name,
		PictureURL:     info.Picture,
	}, nil
}
