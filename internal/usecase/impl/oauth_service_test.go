package impl

import (
	"context"
	"regexp"
	"testing"

	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/service"
	"cambio/internal/infra/auth"
	"cambio/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOAuthProvider struct {
	mock.Mock
	provider entity.ProviderType
}

func (m *mockOAuthProvider) Provider() entity.ProviderType {
	return m.provider
}

func (m *mockOAuthProvider) AuthorizeURL(cfg entity.ProviderConfig, redirectURI, state string) string {
	return "https://consent.example/" + string(m.provider) + "?client_id=" + cfg.ClientID + "&redirect_uri=" + redirectURI + "&state=" + state
}

func (m *mockOAuthProvider) Exchange(ctx context.Context, cfg entity.ProviderConfig, code, redirectURI string) (*service.OAuthToken, error) {
	args := m.Called(ctx, cfg, code, redirectURI)
	token, _ := args.Get(0).(*service.OAuthToken)

	return token, args.Error(1)
}

func (m *mockOAuthProvider) FetchUser(ctx context.Context, token *service.OAuthToken) (*service.OAuthUser, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*service.OAuthUser)

	return user, args.Error(1)
}

type mockRegistry map[entity.ProviderType]*mockOAuthProvider

func (r mockRegistry) Get(provider entity.ProviderType) (service.OAuthProvider, bool) {
	p, ok := r[provider]
	if !ok {
		return nil, false
	}

	return p, true
}

type oauthFixture struct {
	store    *memStore
	google   *mockOAuthProvider
	facebook *mockOAuthProvider
	metrics  *recordingMetrics
	srv      *oauthService
	sessions *sessionService
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()

	store := newMemStore()
	metrics := &recordingMetrics{}
	google := &mockOAuthProvider{provider: entity.ProviderTypeGoogle}
	facebook := &mockOAuthProvider{provider: entity.ProviderTypeFacebook}
	t.Cleanup(func() {
		google.AssertExpectations(t)
		facebook.AssertExpectations(t)
	})

	integrations := &memIntegrationRepo{integrations: map[string]*entity.Integration{
		"google": {
			Provider: "google", Type: entity.IntegrationTypeOAuth, IsActive: true,
			Config: entity.ProviderConfig{ClientID: "g-client", ClientSecret: "g-secret"},
		},
		"facebook": {
			Provider: "facebook", Type: entity.IntegrationTypeOAuth, IsActive: true,
			Config: entity.ProviderConfig{ClientID: "fb-client", ClientSecret: "fb-secret", RedirectURI: "https://app.cambio.test/fb"},
		},
	}}

	cfg := newTestConfig()
	srv := NewOAuthService(OAuthServiceParams{
		TxManager:       store,
		IntegrationRepo: integrations,
		Providers:       mockRegistry{entity.ProviderTypeGoogle: google, entity.ProviderTypeFacebook: facebook},
		Hasher:          testHasher(),
		TokenService:    auth.NewTokenService(),
		Metrics:         metrics,
		Config:          cfg,
		Logger:          newDiscardLogger(),
	}).(*oauthService)

	direct := store.direct()
	sessions := NewSessionService(SessionServiceParams{
		TxManager:      store,
		CredentialRepo: direct.CredentialRepo(),
		ProfileRepo:    direct.ProfileRepo(),
		Hasher:         testHasher(),
		TokenService:   auth.NewTokenService(),
		Metrics:        metrics,
		Config:         cfg,
		Logger:         newDiscardLogger(),
	}).(*sessionService)

	return &oauthFixture{store: store, google: google, facebook: facebook, metrics: metrics, srv: srv, sessions: sessions}
}

func (f *oauthFixture) expectGoogleUser(user *service.OAuthUser, times int) {
	token := &service.OAuthToken{AccessToken: "g-access", RefreshToken: "g-refresh"}
	f.google.On("Exchange", mock.Anything, mock.Anything, "code-1", "https://api.cambio.test/integraciones/oauth/google/callback").
		Return(token, nil).Times(times)
	f.google.On("FetchUser", mock.Anything, token).Return(user, nil).Times(times)
}

func (f *oauthFixture) callback(t *testing.T, provider string) *entity.Session {
	t.Helper()

	session, err := f.srv.HandleCallback(context.Background(), &usecase.CallbackInput{Provider: provider, Code: "code-1"})
	require.NoError(t, err)

	return session
}

func liveProfiles(s *memState) int {
	n := 0
	for id := range s.profiles {
		if !s.deleted[id] {
			n++
		}
	}

	return n
}

func TestOAuthService_AuthorizeURL(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	url, err := f.srv.AuthorizeURL(ctx, &usecase.AuthorizeInput{Provider: "Google", State: "s1"})
	require.NoError(t, err)
	assert.Contains(t, url, "client_id=g-client")
	assert.Contains(t, url, "redirect_uri=https://api.cambio.test/integraciones/oauth/google/callback")
	assert.Contains(t, url, "state=s1")

	url, err = f.srv.AuthorizeURL(ctx, &usecase.AuthorizeInput{Provider: "facebook"})
	require.NoError(t, err)
	assert.Contains(t, url, "redirect_uri=https://app.cambio.test/fb", "configured redirect beats the default")

	url, err = f.srv.AuthorizeURL(ctx, &usecase.AuthorizeInput{Provider: "facebook", RedirectURI: "https://caller/cb"})
	require.NoError(t, err)
	assert.Contains(t, url, "redirect_uri=https://caller/cb", "caller redirect wins")

	_, err = f.srv.AuthorizeURL(ctx, &usecase.AuthorizeInput{Provider: "github"})
	assert.True(t, errors.Is(err, domainerrors.ErrUnsupportedProvider))
	assert.Equal(t, 0, f.store.commits)
}

func TestOAuthService_ProviderNotConfigured(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	integrations := f.srv.integrationRepo.(*memIntegrationRepo)
	integrations.integrations["google"].Config.ClientSecret = ""
	integrations.integrations["facebook"].IsActive = false

	_, err := f.srv.AuthorizeURL(ctx, &usecase.AuthorizeInput{Provider: "google"})
	assert.True(t, errors.Is(err, domainerrors.ErrProviderNotConfigured))

	_, err = f.srv.HandleCallback(ctx, &usecase.CallbackInput{Provider: "facebook", Code: "c"})
	assert.True(t, errors.Is(err, domainerrors.ErrProviderNotConfigured))
}

func TestOAuthService_CallbackCreatesProfileOnce(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	user := &service.OAuthUser{
		ProviderUserID: "g-123",
		Email:          "Carol@Example.com",
		DisplayName:    "Carol  Ann Smith",
		PictureURL:     "https://img/c.png",
	}
	f.expectGoogleUser(user, 2)

	first := f.callback(t, "google")
	state := f.store.snapshot()
	require.Equal(t, 1, liveProfiles(state))
	require.Len(t, state.accounts, 1)
	require.Len(t, state.credentials, 1)

	profile := state.profiles[first.Profile.ID]
	assert.Equal(t, "carol@example.com", *profile.Email)
	assert.Equal(t, "Carol", *profile.Names)
	assert.Equal(t, "Ann Smith", *profile.Lastnames)
	assert.Equal(t, "https://img/c.png", *profile.ProfileImage)
	require.NotNil(t, profile.AuthID)
	assert.Equal(t, "carol@example.com", state.credentials[*profile.AuthID].Username)

	second := f.callback(t, "google")
	assert.Equal(t, first.Profile.ID, second.Profile.ID)
	assert.NotEqual(t, first.Token, second.Token)

	state = f.store.snapshot()
	assert.Equal(t, 1, liveProfiles(state))
	assert.Len(t, state.accounts, 1)
	assert.Len(t, state.credentials, 1)

	_, err := f.sessions.Validate(ctx, first.Token)
	assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized))
	identity, err := f.sessions.Validate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, first.Profile.ID, identity.UserID)

	assert.Contains(t, f.metrics.Events(), "oauth:google:new_profile")
	assert.Contains(t, f.metrics.Events(), "oauth:google:existing_link")
}

func TestOAuthService_CallbackLinksByEmail(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	existing := &entity.Profile{Email: strPtr("Bob@Example.com"), Names: strPtr("Bob")}
	require.NoError(t, f.store.direct().ProfileRepo().Create(ctx, existing))

	f.expectGoogleUser(&service.OAuthUser{ProviderUserID: "g-bob", Email: "bob@example.com", DisplayName: "Robert"}, 1)

	session := f.callback(t, "google")
	assert.Equal(t, existing.ID, session.Profile.ID)

	state := f.store.snapshot()
	assert.Equal(t, 1, liveProfiles(state), "email match must not create a profile")
	profile := state.profiles[existing.ID]
	require.NotNil(t, profile.AuthID, "synthesized credential is attached")
	assert.Equal(t, "Bob", *profile.Names, "existing profile data is kept")

	credential := state.credentials[*profile.AuthID]
	assert.Equal(t, "bob@example.com", credential.Username)
	assert.NotEmpty(t, credential.PasswordHash)

	for _, account := range state.accounts {
		assert.Equal(t, existing.ID, account.UserID)
		assert.Equal(t, "g-access", *account.AccessToken)
	}
	assert.Contains(t, f.metrics.Events(), "oauth:google:email_match")
}

func TestOAuthService_CallbackReusesExistingCredential(t *testing.T) {
	f := newOAuthFixture(t)
	credential, profile := seedAccount(t, f.store, "dana@example.com", "Str0ng!Pass")

	f.expectGoogleUser(&service.OAuthUser{ProviderUserID: "g-dana", Email: "dana@example.com"}, 1)

	session := f.callback(t, "google")
	assert.Equal(t, profile.ID, session.Profile.ID)

	state := f.store.snapshot()
	assert.Len(t, state.credentials, 1)
	assert.Equal(t, hashOf(t, "Str0ng!Pass"), state.credentials[credential.ID].PasswordHash, "password is untouched")
	require.NotNil(t, state.credentials[credential.ID].Token)
	assert.Equal(t, session.Token, *state.credentials[credential.ID].Token)
}

func TestOAuthService_CallbackWithoutEmailUsesProviderUsername(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	taken := &entity.Credential{Username: "facebook_fb-9", PasswordHash: "x"}
	require.NoError(t, f.store.direct().CredentialRepo().Create(ctx, taken))

	token := &service.OAuthToken{AccessToken: "fb-access"}
	f.facebook.On("Exchange", mock.Anything, mock.Anything, "code-1", "https://app.cambio.test/fb").Return(token, nil).Once()
	f.facebook.On("FetchUser", mock.Anything, token).Return(&service.OAuthUser{ProviderUserID: "FB-9", DisplayName: "Eve"}, nil).Once()

	session := f.callback(t, "facebook")
	assert.Nil(t, session.Profile.Email)

	state := f.store.snapshot()
	profile := state.profiles[session.Profile.ID]
	require.NotNil(t, profile.AuthID)
	assert.Regexp(t, regexp.MustCompile(`^facebook_fb-9_[0-9a-f]{8}$`), state.credentials[*profile.AuthID].Username)
	assert.Nil(t, profile.Lastnames)
}

func TestOAuthService_CallbackRetriesAfterLinkConflict(t *testing.T) {
	f := newOAuthFixture(t)

	winner := uuid.New()
	winnerCredential := uuid.New()
	f.store.onLinkCreate = func(committed *memState, account *entity.ExternalAccount) bool {
		f.store.onLinkCreate = nil
		committed.credentials[winnerCredential] = entity.Credential{ID: winnerCredential, Username: "winner"}
		committed.profiles[winner] = entity.Profile{ID: winner, AuthID: &winnerCredential, Email: strPtr("winner@example.com")}
		linkID := uuid.New()
		committed.accounts[linkID] = entity.ExternalAccount{
			ID: linkID, UserID: winner, Provider: account.Provider, ProviderUserID: account.ProviderUserID,
		}

		return true
	}
	f.expectGoogleUser(&service.OAuthUser{ProviderUserID: "g-race", Email: "race@example.com"}, 1)

	session := f.callback(t, "google")
	assert.Equal(t, winner, session.Profile.ID, "the retry resolves as an existing link")

	state := f.store.snapshot()
	assert.Equal(t, 1, liveProfiles(state), "the losing branch is rolled back")
	assert.Contains(t, f.metrics.Events(), "oauth:google:existing_link")
}

func TestOAuthService_CallbackRepeatedConflictSurfaces(t *testing.T) {
	f := newOAuthFixture(t)

	attempts := 0
	f.store.onLinkCreate = func(*memState, *entity.ExternalAccount) bool {
		attempts++

		return true
	}
	f.expectGoogleUser(&service.OAuthUser{ProviderUserID: "g-loop", Email: "loop@example.com"}, 1)

	_, err := f.srv.HandleCallback(context.Background(), &usecase.CallbackInput{Provider: "google", Code: "code-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrLinkConflict))
	assert.Equal(t, linkAttempts, attempts)
	assert.Equal(t, 0, f.store.commits)
	assert.Contains(t, f.metrics.Events(), "oauth:google:conflict")
}

func TestOAuthService_CallbackExchangeFailure(t *testing.T) {
	f := newOAuthFixture(t)

	f.google.On("Exchange", mock.Anything, mock.Anything, "bad", mock.Anything).
		Return(nil, errors.Wrap(domainerrors.ErrProviderExchangeFailed, "invalid_grant")).Once()

	_, err := f.srv.HandleCallback(context.Background(), &usecase.CallbackInput{Provider: "google", Code: "bad"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrProviderExchangeFailed))
	assert.Equal(t, 0, f.store.commits)

	_, err = f.srv.HandleCallback(context.Background(), &usecase.CallbackInput{Provider: "google", Code: " "})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
}

func TestSplitDisplayName(t *testing.T) {
	tests := []struct {
		in        string
		names     string
		lastnames string
	}{
		{in: "", names: "", lastnames: ""},
		{in: "Cher", names: "Cher", lastnames: ""},
		{in: "Ada Lovelace", names: "Ada", lastnames: "Lovelace"},
		{in: "  María José\tGarcía López ", names: "María", lastnames: "José\tGarcía López"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			names, lastnames := splitDisplayName(tt.in)
			assert.Equal(t, tt.names, names)
			assert.Equal(t, tt.lastnames, lastnames)
		})
	}
}

func TestOAuthService_CallbackAfterProfileDeletionCreatesFreshProfile(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	users := NewUserService(UserServiceParams{
		TxManager:   f.store,
		ProfileRepo: f.store.direct().ProfileRepo(),
		Logger:      newDiscardLogger(),
	})

	f.expectGoogleUser(&service.OAuthUser{ProviderUserID: "g-back", Email: "back@example.com", DisplayName: "Hal"}, 2)

	first := f.callback(t, "google")
	require.NoError(t, users.DeleteProfile(ctx, first.Profile.ID))

	second := f.callback(t, "google")
	assert.NotEqual(t, first.Profile.ID, second.Profile.ID)
	require.NotNil(t, second.Profile.Email)
	assert.Equal(t, "back@example.com", *second.Profile.Email)

	state := f.store.snapshot()
	assert.Equal(t, 1, liveProfiles(state))
	assert.True(t, state.deleted[first.Profile.ID])
	assert.Len(t, state.accounts, 1)
	assert.Contains(t, f.metrics.Events(), "oauth:google:new_profile")
}
