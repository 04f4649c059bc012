package oauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	facebookAuthURL     = "https://www.facebook.com/v18.0/dialog/oauth"
	facebookTokenURL    = "https://graph.facebook.com/v18.0/oauth/access_token"
	facebookUserInfoURL = "https://graph.facebook.com/me"
	facebookFields      = "id,name,email,picture.type(large)"
)

var facebookScopes = []string{"email", "public_profile"}

type facebookProvider struct {
	client      *http.Client
	logger      *slog.Logger
	endpoint    oauth2.Endpoint
	userInfoURL string
}

func newFacebookProvider(client *http.Client, logger *slog.Logger) *facebookProvider {
	return &facebookProvider{
		client: client,
		logger: logger,
		endpoint: oauth2.Endpoint{
			AuthURL:   facebookAuthURL,
			TokenURL:  facebookTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userInfoURL: facebookUserInfoURL,
	}
}

func (p *facebookProvider) Provider() entity.ProviderType {
	return entity.ProviderTypeFacebook
}

func (p *facebookProvider) AuthorizeURL(cfg entity.ProviderConfig, redirectURI, state string) string {
	return clientConfig(cfg, p.endpoint, redirectURI, facebookScopes).AuthCodeURL(state)
}

func (p *facebookProvider) Exchange(ctx context.Context, cfg entity.ProviderConfig, code, redirectURI string) (*service.OAuthToken, error) {
	return exchangeCode(ctx, p.client, clientConfig(cfg, p.endpoint, redirectURI, facebookScopes), code)
}

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// FetchUser reads the Graph API "me" node.
func (p *facebookProvider) FetchUser(ctx context.Context, token *service.OAuthToken) (*service.OAuthUser, error) {
	params := url.Values{}
	params.Set("fields", facebookFields)
	params.Set("access_token", token.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user info request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.WarnContext(ctx, "Facebook userinfo rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)

		return nil, errors.Wrapf(domainerrors.ErrProviderExchangeFailed.WithDetails("userinfo request rejected"),
			"facebook userinfo status %d", resp.StatusCode)
	}

	var user facebookUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "failed to decode user info response")
	}
	if user.ID == "" {
		return nil, errors.Wrap(domainerrors.ErrProviderExchangeFailed.WithDetails("userinfo without id"), "facebook userinfo")
	}

	return &service.OAuthUser{
		ProviderUserID: user.ID,
		Email:          user.Email,
		DisplayName:    user.Name,
		PictureURL:     user.Picture.Data.URL,
	}, nil
}
