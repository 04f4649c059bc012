package oauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"cambio/config"
	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testProviderConfig = entity.ProviderConfig{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokenServer(t *testing.T, status int, body map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestNewRegistry_ResolvesSupportedProviders(t *testing.T) {
	reg := NewRegistry(Params{
		Config: &config.Config{OAuth: &config.OAuthConfig{HTTPTimeout: time.Second}},
		Logger: testLogger(),
	})

	for _, provider := range entity.SupportedProviders {
		p, ok := reg.Get(provider)
		require.True(t, ok, provider)
		assert.Equal(t, provider, p.Provider())
	}

	_, ok := reg.Get(entity.ProviderType("github"))
	assert.False(t, ok)
}

func TestGoogleProvider_AuthorizeURL(t *testing.T) {
	p := newGoogleProvider(http.DefaultClient, testLogger())

	raw := p.AuthorizeURL(testProviderConfig, "https://api.example.com/integraciones/oauth/google/callback", "state-1")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://api.example.com/integraciones/oauth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-1", q.Get("state"))
}

func TestFacebookProvider_AuthorizeURL(t *testing.T) {
	p := newFacebookProvider(http.DefaultClient, testLogger())

	cfg := testProviderConfig
	cfg.RedirectURI = "https://stored.example.com/cb"

	u, err := url.Parse(p.AuthorizeURL(cfg, "", "s"))
	require.NoError(t, err)
	assert.Equal(t, "/v18.0/dialog/oauth", u.Path)
	assert.Equal(t, "email public_profile", u.Query().Get("scope"))
	assert.Equal(t, "https://stored.example.com/cb", u.Query().Get("redirect_uri"), "stored redirect is the fallback")
}

func TestExchange(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      map[string]any
		wantToken string
		wantErr   error
	}{
		{
			name:      "success",
			status:    http.StatusOK,
			body:      map[string]any{"access_token": "at-1", "refresh_token": "rt-1", "token_type": "Bearer"},
			wantToken: "at-1",
		},
		{
			name:    "provider rejects code",
			status:  http.StatusBadRequest,
			body:    map[string]any{"error": "invalid_grant"},
			wantErr: domainerrors.ErrProviderExchangeFailed,
		},
		{
			name:    "no access token",
			status:  http.StatusOK,
			body:    map[string]any{"token_type": "Bearer"},
			wantErr: domainerrors.ErrProviderExchangeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenServer(t, tt.status, tt.body)

			p := newGoogleProvider(srv.Client(), testLogger())
			p.endpoint = oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}

			tok, err := p.Exchange(context.Background(), testProviderConfig, "code-1", "https://cb")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, tok.AccessToken)
			assert.Equal(t, "rt-1", tok.RefreshToken)
		})
	}
}

func TestGoogleProvider_FetchUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/v2/userinfo", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer at-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "g-123",
				"email":   "alice@example.com",
				"name":    "Alice Liddell",
				"picture": "https://img.example.com/a.png",
			})
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"error":{"code":502,"message":"upstream"}}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":401,"message":"Invalid Credentials"}}`)
		}
	}))
	defer srv.Close()

	p := newGoogleProvider(srv.Client(), testLogger())
	p.apiEndpoint = srv.URL + "/"

	user, err := p.FetchUser(context.Background(), &service.OAuthToken{AccessToken: "at-1"})
	require.NoError(t, err)
	assert.Equal(t, "g-123", user.ProviderUserID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice Liddell", user.DisplayName)
	assert.Equal(t, "https://img.example.com/a.png", user.PictureURL)

	_, err = p.FetchUser(context.Background(), &service.OAuthToken{AccessToken: "revoked"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrProviderExchangeFailed))
	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode())

	_, err = p.FetchUser(context.Background(), &service.OAuthToken{AccessToken: "broken"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domainerrors.ErrProviderExchangeFailed), "upstream failures stay internal")
}

func TestFacebookProvider_FetchUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, facebookFields, r.URL.Query().Get("fields"))

		if r.URL.Query().Get("access_token") != "at-2" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
		_, _ = io.WriteString(w, `{"id":"fb-9","name":"Bob","picture":{"data":{"url":"https://img.example.com/b.png"}}}`)
	}))
	defer srv.Close()

	p := newFacebookProvider(srv.Client(), testLogger())
	p.userInfoURL = srv.URL

	user, err := p.FetchUser(context.Background(), &service.OAuthToken{AccessToken: "at-2"})
	require.NoError(t, err)
	assert.Equal(t, "fb-9", user.ProviderUserID)
	assert.Empty(t, user.Email)
	assert.Equal(t, "https://img.example.com/b.png", user.PictureURL)

	_, err = p.FetchUser(context.Background(), &service.OAuthToken{AccessToken: "revoked"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrProviderExchangeFailed))
}
