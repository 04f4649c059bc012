package impl

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"cambio/config"
	deliverycontext "cambio/internal/delivery/context"
	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/repository"
	"cambio/internal/domain/service"
	"cambio/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Outcomes of a callback resolution, also used as metric labels.
const (
	outcomeExistingLink = "existing_link"
	outcomeEmailMatch   = "email_match"
	outcomeNewProfile   = "new_profile"
	outcomeConflict     = "conflict"
	outcomeFailed       = "error"
)

// linkAttempts bounds how often a resolution is replayed after losing a race.
const linkAttempts = 2

// usernameAttempts bounds the random suffixes tried for a taken username.
const usernameAttempts = 5

// oauthService implements the OAuthUsecase interface.
type oauthService struct {
	txManager       repository.TransactionManager
	integrationRepo repository.IntegrationRepository
	providers       service.OAuthProviderRegistry
	hasher          service.PasswordHasher
	tokenService    service.TokenService
	metrics         usecase.AuthMetrics
	publicURL       string
	now             func() time.Time
	logger          *slog.Logger
}

// OAuthServiceParams holds dependencies for OAuthService, injected by Fx.
type OAuthServiceParams struct {
	fx.In

	TxManager       repository.TransactionManager
	IntegrationRepo repository.IntegrationRepository
	Providers       service.OAuthProviderRegistry
	Hasher          service.PasswordHasher
	TokenService    service.TokenService
	Metrics         usecase.AuthMetrics
	Config          *config.Config
	Logger          *slog.Logger
}

// NewOAuthService is the constructor for oauthService.
func NewOAuthService(params OAuthServiceParams) usecase.OAuthUsecase {
	publicURL := ""
	if params.Config.OAuth != nil {
		publicURL = strings.TrimRight(params.Config.OAuth.PublicURL, "/")
	}

	return &oauthService{
		txManager:       params.TxManager,
		integrationRepo: params.IntegrationRepo,
		providers:       params.Providers,
		hasher:          params.Hasher,
		tokenService:    params.TokenService,
		metrics:         params.Metrics,
		publicURL:       publicURL,
		now:             time.Now,
		logger:          params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *oauthService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// AuthorizeURL resolves the provider configuration and builds its consent URL.
func (srv *oauthService) AuthorizeURL(ctx context.Context, input *usecase.AuthorizeInput) (string, error) {
	provider, client, err := srv.provider(input.Provider)
	if err != nil {
		return "", err
	}

	cfg, err := srv.providerConfig(ctx, provider)
	if err != nil {
		return "", err
	}

	return client.AuthorizeURL(cfg, srv.redirectURI(provider, input.RedirectURI, cfg), input.State), nil
}

// HandleCallback completes the authorization code flow and signs the caller in.
func (srv *oauthService) HandleCallback(ctx context.Context, input *usecase.CallbackInput) (*entity.Session, error) {
	provider, client, err := srv.provider(input.Provider)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed.WithDetails("code is required"), "missing authorization code")
	}

	// 1. Resolve configuration
	cfg, err := srv.providerConfig(ctx, provider)
	if err != nil {
		return nil, err
	}

	// 2. Exchange the code
	token, err := client.Exchange(ctx, cfg, input.Code, srv.redirectURI(provider, input.RedirectURI, cfg))
	if err != nil {
		srv.metrics.RecordOAuthLink(ctx, string(provider), outcomeFailed)
		srv.log(ctx).Warn("OAuth code exchange failed", slog.String("provider", string(provider)), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}

	// 3. Fetch the provider identity
	user, err := client.FetchUser(ctx, token)
	if err != nil {
		srv.metrics.RecordOAuthLink(ctx, string(provider), outcomeFailed)
		srv.log(ctx).Warn("OAuth userinfo failed", slog.String("provider", string(provider)), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to fetch provider user")
	}

	// 4. Resolve the local identity, replaying once if a concurrent callback won the race
	var (
		session *entity.Session
		outcome string
	)
	for attempt := 1; attempt <= linkAttempts; attempt++ {
		session, outcome, err = srv.resolve(ctx, provider, user, token)
		if err == nil || !errors.Is(err, domainerrors.ErrLinkConflict) {
			break
		}
		srv.log(ctx).Warn("OAuth link conflict",
			slog.String("provider", string(provider)),
			slog.String("provider_user_id", user.ProviderUserID),
			slog.Int("attempt", attempt),
		)
	}
	if err != nil {
		if errors.Is(err, domainerrors.ErrLinkConflict) {
			srv.metrics.RecordOAuthLink(ctx, string(provider), outcomeConflict)
		} else {
			srv.metrics.RecordOAuthLink(ctx, string(provider), outcomeFailed)
			srv.log(ctx).Error("OAuth link failed", slog.String("provider", string(provider)), slog.Any("error", err))
		}

		return nil, errors.Wrap(err, "failed to resolve oauth identity")
	}

	srv.metrics.RecordOAuthLink(ctx, string(provider), outcome)
	srv.log(ctx).Info("OAuth sign-in",
		slog.String("provider", string(provider)),
		slog.String("outcome", outcome),
		slog.Any("user_id", session.Profile.ID),
	)

	return session, nil
}

// resolve applies the linking priority inside one transaction:
// existing link, then a profile with the same email, then a new profile.
func (srv *oauthService) resolve(ctx context.Context, provider entity.ProviderType, user *service.OAuthUser, token *service.OAuthToken) (*entity.Session, string, error) {
	var (
		session *entity.Session
		outcome string
	)

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.ExternalAccountRepo()
		profileRepo := repoFactory.ProfileRepo()

		// 1. Existing link
		link, err := accountRepo.FindByProviderUserID(ctx, provider, user.ProviderUserID)
		if err == nil {
			outcome = outcomeExistingLink

			profile, err := profileRepo.FindByID(ctx, link.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrProfileNotFound) {
					srv.log(ctx).Error("External account without profile", slog.Any("external_account_id", link.ID))

					return errors.Wrap(domainerrors.ErrAccountInconsistent, "link without profile")
				}

				return errors.Wrap(err, "failed to find linked profile")
			}

			if err := accountRepo.UpdateTokens(ctx, link.ID, &token.AccessToken, optionalString(token.RefreshToken)); err != nil {
				return errors.Wrap(err, "failed to refresh provider tokens")
			}

			session, err = srv.startSession(ctx, repoFactory, profile, provider, user)

			return err
		}
		if !errors.Is(err, repository.ErrExternalAccountNotFound) {
			return errors.Wrap(err, "failed to find external account")
		}

		// 2. Profile with the same email
		email := normalizeEmail(user.Email)
		var profile *entity.Profile
		if email != "" {
			profile, err = profileRepo.FindByEmail(ctx, email)
			if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
				return errors.Wrap(err, "failed to find profile by email")
			}
		}

		if profile != nil {
			outcome = outcomeEmailMatch
		} else {
			// 3. New profile
			outcome = outcomeNewProfile
			profile = newProfileFromProvider(user, email)
			if err := profileRepo.Create(ctx, profile); err != nil {
				if errors.Is(err, repository.ErrEmailTaken) {
					return errors.Wrap(domainerrors.ErrLinkConflict, "email registered concurrently")
				}

				return errors.Wrap(err, "failed to create profile")
			}
		}

		// 4. Link the provider identity
		account := &entity.ExternalAccount{
			UserID:         profile.ID,
			Provider:       provider,
			ProviderUserID: user.ProviderUserID,
			Email:          optionalString(email),
			AccessToken:    optionalString(token.AccessToken),
			RefreshToken:   optionalString(token.RefreshToken),
		}
		if err := accountRepo.Create(ctx, account); err != nil {
			return errors.Wrap(err, "failed to link external account")
		}

		session, err = srv.startSession(ctx, repoFactory, profile, provider, user)

		return err
	})
	if err != nil {
		return nil, "", err
	}

	return session, outcome, nil
}

// startSession makes sure the profile has a credential and issues a token for it.
func (srv *oauthService) startSession(ctx context.Context, repoFactory repository.RepositoryFactory, profile *entity.Profile, provider entity.ProviderType, user *service.OAuthUser) (*entity.Session, error) {
	credentialRepo := repoFactory.CredentialRepo()

	var credential *entity.Credential
	if profile.HasCredential() {
		found, err := credentialRepo.FindByID(ctx, *profile.AuthID)
		switch {
		case err == nil:
			credential = found
		case errors.Is(err, repository.ErrCredentialNotFound):
			srv.log(ctx).Warn("Profile references missing credential, synthesizing", slog.Any("user_id", profile.ID))
		default:
			return nil, errors.Wrap(err, "failed to find credential")
		}
	}

	if credential == nil {
		synthesized, err := srv.synthesizeCredential(ctx, credentialRepo, profile, provider, user)
		if err != nil {
			return nil, err
		}
		credential = synthesized

		if err := srv.attachCredential(ctx, repoFactory.ProfileRepo(), profile, credential.ID); err != nil {
			return nil, err
		}
	}

	token, err := issueToken(ctx, credentialRepo, srv.tokenService, credential.ID, srv.now())
	if err != nil {
		return nil, err
	}

	return &entity.Session{Token: token, Profile: profile.Summary()}, nil
}

// synthesizeCredential creates a credential whose random password is hashed and discarded.
// The owner can set a real one through the password reset flow.
func (srv *oauthService) synthesizeCredential(ctx context.Context, credentialRepo repository.CredentialRepository, profile *entity.Profile, provider entity.ProviderType, user *service.OAuthUser) (*entity.Credential, error) {
	username, err := srv.availableUsername(ctx, credentialRepo, baseUsername(profile, provider, user))
	if err != nil {
		return nil, err
	}

	secret, err := srv.tokenService.GenerateSecret()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate secret")
	}
	hash, err := srv.hasher.Hash(secret)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	now := srv.now()
	credential := &entity.Credential{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := credentialRepo.Create(ctx, credential); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, errors.Wrap(domainerrors.ErrLinkConflict, "username registered concurrently")
		}

		return nil, errors.Wrap(err, "failed to create credential")
	}

	return credential, nil
}

func (srv *oauthService) attachCredential(ctx context.Context, profileRepo repository.ProfileRepository, profile *entity.Profile, credentialID uuid.UUID) error {
	if profile.AuthID == nil {
		if err := profileRepo.AttachCredential(ctx, profile.ID, credentialID); err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return errors.Wrap(domainerrors.ErrLinkConflict, "credential attached concurrently")
			}

			return errors.Wrap(err, "failed to attach credential")
		}
		profile.AuthID = &credentialID

		return nil
	}

	// auth_id pointed at a credential that no longer exists.
	profile.AuthID = &credentialID
	if err := profileRepo.Update(ctx, profile); err != nil {
		return errors.Wrap(err, "failed to repair credential reference")
	}

	return nil
}

// availableUsername returns base, or base with a random suffix when base is taken.
func (srv *oauthService) availableUsername(ctx context.Context, credentialRepo repository.CredentialRepository, base string) (string, error) {
	candidate := base
	for range usernameAttempts {
		exists, err := credentialRepo.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "failed to check username")
		}
		if !exists {
			return candidate, nil
		}

		id := uuid.New()
		candidate = base + "_" + hex.EncodeToString(id[:4])
	}

	return "", errors.Wrap(domainerrors.ErrLinkConflict, "no free username")
}

func (srv *oauthService) provider(name string) (entity.ProviderType, service.OAuthProvider, error) {
	provider := entity.ProviderType(strings.ToLower(strings.TrimSpace(name)))
	if !provider.IsSupported() {
		return "", nil, errors.Wrap(domainerrors.ErrUnsupportedProvider.WithDetails(name), "unsupported provider")
	}

	client, ok := srv.providers.Get(provider)
	if !ok {
		return "", nil, errors.Wrap(domainerrors.ErrUnsupportedProvider.WithDetails(name), "no client for provider")
	}

	return provider, client, nil
}

func (srv *oauthService) providerConfig(ctx context.Context, provider entity.ProviderType) (entity.ProviderConfig, error) {
	integration, err := srv.integrationRepo.FindByProvider(ctx, string(provider))
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return entity.ProviderConfig{}, errors.Wrap(domainerrors.ErrProviderNotConfigured.WithDetails(string(provider)), "no integration")
		}

		return entity.ProviderConfig{}, errors.Wrap(err, "failed to load provider configuration")
	}
	if !integration.Config.IsComplete() {
		return entity.ProviderConfig{}, errors.Wrap(domainerrors.ErrProviderNotConfigured.WithDetails(string(provider)), "incomplete integration")
	}

	return integration.Config, nil
}

// redirectURI picks the caller's value, then the configured one, then the public callback route.
func (srv *oauthService) redirectURI(provider entity.ProviderType, requested string, cfg entity.ProviderConfig) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if cfg.RedirectURI != "" {
		return cfg.RedirectURI
	}

	return srv.publicURL + "/integraciones/oauth/" + string(provider) + "/callback"
}

// --- Helpers ---

func newProfileFromProvider(user *service.OAuthUser, email string) *entity.Profile {
	names, lastnames := splitDisplayName(user.DisplayName)

	return &entity.Profile{
		Email:        optionalString(email),
		Names:        optionalString(names),
		Lastnames:    optionalString(lastnames),
		ProfileImage: optionalString(user.PictureURL),
		Role:         entity.RoleClient,
	}
}

// splitDisplayName splits at the first whitespace run into names and lastnames.
func splitDisplayName(displayName string) (string, string) {
	displayName = strings.TrimSpace(displayName)

	idx := strings.IndexFunc(displayName, unicode.IsSpace)
	if idx < 0 {
		return displayName, ""
	}

	return displayName[:idx], strings.TrimSpace(displayName[idx:])
}

// baseUsername prefers an email and falls back to provider_provideruserid.
func baseUsername(profile *entity.Profile, provider entity.ProviderType, user *service.OAuthUser) string {
	if email := normalizeEmail(user.Email); email != "" {
		return email
	}
	if profile.Email != nil && *profile.Email != "" {
		return normalizeEmail(*profile.Email)
	}

	return strings.ToLower(string(provider) + "_" + user.ProviderUserID)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
