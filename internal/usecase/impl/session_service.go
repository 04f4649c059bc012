// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

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

// Metric label values.
const (
	resultSuccess            = "success"
	resultInvalidCredentials = "invalid_credentials"
	resultError              = "error"

	validationOK       = "ok"
	validationMissing  = "missing"
	validationUnknown  = "unknown"
	validationExpired  = "expired"
	validationOrphaned = "orphaned"

	resetStageRequest = "request"
	resetStageConfirm = "confirm"
	resetIssued       = "issued"
	resetIgnored      = "ignored"
	resetWeak         = "weak_password"
	resetInvalidCode  = "invalid_code"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	txManager      repository.TransactionManager
	credentialRepo repository.CredentialRepository
	profileRepo    repository.ProfileRepository
	hasher         service.PasswordHasher
	tokenService   service.TokenService
	metrics        usecase.AuthMetrics
	tokenTTL       time.Duration
	now            func() time.Time
	logger         *slog.Logger

	// dummyHash equalises the cost of unknown-username logins with real ones.
	dummyHashOnce sync.Once
	dummyHash     string
}

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager      repository.TransactionManager
	CredentialRepo repository.CredentialRepository
	ProfileRepo    repository.ProfileRepository
	Hasher         service.PasswordHasher
	TokenService   service.TokenService
	Metrics        usecase.AuthMetrics
	Config         *config.Config
	Logger         *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager:      params.TxManager,
		credentialRepo: params.CredentialRepo,
		profileRepo:    params.ProfileRepo,
		hasher:         params.Hasher,
		tokenService:   params.TokenService,
		metrics:        params.Metrics,
		tokenTTL:       params.Config.Auth.TokenTTL(),
		now:            time.Now,
		logger:         params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Login verifies the password and overwrites the credential's token.
// Unknown usernames and wrong passwords fail with the same error.
func (srv *sessionService) Login(ctx context.Context, input *usecase.LoginInput) (*entity.Session, error) {
	username := normalizeUsername(input.Username)

	var session *entity.Session
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		credentialRepo := repoFactory.CredentialRepo()

		// 1. Find credential
		credential, err := credentialRepo.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repository.ErrCredentialNotFound) {
				srv.burnHashCheck(input.Password)

				return errors.Wrap(domainerrors.ErrInvalidCredentials, "unknown username")
			}

			return errors.Wrap(err, "failed to find credential")
		}

		// 2. Verify password
		if !srv.hasher.Check(input.Password, credential.PasswordHash) {
			return errors.Wrap(domainerrors.ErrInvalidCredentials, "password mismatch")
		}

		// 3. Resolve profile
		profile, err := repoFactory.ProfileRepo().FindByAuthID(ctx, credential.ID)
		if err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				srv.log(ctx).Error("Credential has no profile", slog.Any("credential_id", credential.ID))

				return errors.Wrap(domainerrors.ErrAccountInconsistent, "credential without profile")
			}

			return errors.Wrap(err, "failed to find profile")
		}

		// 4. Issue token
		token, err := issueToken(ctx, credentialRepo, srv.tokenService, credential.ID, srv.now())
		if err != nil {
			return err
		}

		session = &entity.Session{Token: token, Profile: profile.Summary()}

		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidCredentials) {
			srv.metrics.RecordLogin(ctx, resultInvalidCredentials)
			srv.log(ctx).Info("Login rejected", slog.String("username", username))
		} else {
			srv.metrics.RecordLogin(ctx, resultError)
			srv.log(ctx).Error("Login failed", slog.String("username", username), slog.Any("error", err))
		}

		return nil, errors.Wrap(err, "failed to log in")
	}

	srv.metrics.RecordLogin(ctx, resultSuccess)
	srv.log(ctx).Info("Login succeeded", slog.Any("user_id", session.Profile.ID))

	return session, nil
}

// VerifyCredentials runs the password check of Login without touching the stored token.
func (srv *sessionService) VerifyCredentials(ctx context.Context, input *usecase.LoginInput) error {
	username := normalizeUsername(input.Username)

	credential, err := srv.credentialRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			srv.burnHashCheck(input.Password)

			return errors.Wrap(domainerrors.ErrInvalidCredentials, "unknown username")
		}

		return errors.Wrap(err, "failed to find credential")
	}
	if !srv.hasher.Check(input.Password, credential.PasswordHash) {
		return errors.Wrap(domainerrors.ErrInvalidCredentials, "password mismatch")
	}

	return nil
}

// burnHashCheck spends one password check against a throwaway hash.
func (srv *sessionService) burnHashCheck(password string) {
	srv.dummyHashOnce.Do(func() {
		hash, err := srv.hasher.Hash(uuid.NewString())
		if err == nil {
			srv.dummyHash = hash
		}
	})
	if srv.dummyHash != "" {
		srv.hasher.Check(password, srv.dummyHash)
	}
}

// Validate resolves a token against the primary database on every call.
// A token is accepted up to and including issuance + TTL.
func (srv *sessionService) Validate(ctx context.Context, token string) (*entity.Identity, error) {
	if token == "" {
		srv.metrics.RecordTokenValidation(ctx, validationMissing)

		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "missing token")
	}

	// 1. Find the credential holding the token
	credential, err := srv.credentialRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			srv.metrics.RecordTokenValidation(ctx, validationUnknown)

			return nil, errors.Wrap(domainerrors.ErrUnauthorized, "unknown token")
		}
		srv.metrics.RecordTokenValidation(ctx, resultError)

		return nil, errors.Wrap(err, "failed to find credential by token")
	}
	if credential.Token == nil || !srv.tokenService.Compare(*credential.Token, token) {
		srv.metrics.RecordTokenValidation(ctx, validationUnknown)

		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "token mismatch")
	}

	// 2. Check expiry
	if srv.now().After(credential.TokenExpiresAt(srv.tokenTTL)) {
		srv.metrics.RecordTokenValidation(ctx, validationExpired)

		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "token expired")
	}

	// 3. Resolve the live profile
	profile, err := srv.profileRepo.FindByAuthID(ctx, credential.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			srv.metrics.RecordTokenValidation(ctx, validationOrphaned)
			srv.log(ctx).Warn("Valid token without profile", slog.Any("credential_id", credential.ID))

			return nil, errors.Wrap(domainerrors.ErrUnauthorized, "profile not found")
		}
		srv.metrics.RecordTokenValidation(ctx, resultError)

		return nil, errors.Wrap(err, "failed to find profile")
	}

	srv.metrics.RecordTokenValidation(ctx, validationOK)

	return &entity.Identity{
		UserID:       profile.ID,
		CredentialID: credential.ID,
		Username:     credential.Username,
		IssuedAt:     credential.UpdatedAt,
	}, nil
}

// Logout leaves the stored token untouched; it expires on its own.
func (srv *sessionService) Logout(ctx context.Context, identity *entity.Identity) error {
	if identity != nil {
		srv.log(ctx).Info("Logout acknowledged", slog.Any("user_id", identity.UserID))
	}

	return nil
}

// ChangePassword replaces the password of an authenticated user. The current session stays valid.
func (srv *sessionService) ChangePassword(ctx context.Context, input *usecase.ChangePasswordInput) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		credentialRepo := repoFactory.CredentialRepo()

		// 1. Resolve profile and credential
		profile, err := repoFactory.ProfileRepo().FindByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return errors.Wrap(domainerrors.ErrNotFound, "user not found")
			}

			return errors.Wrap(err, "failed to find profile")
		}
		if !profile.HasCredential() {
			return errors.Wrap(domainerrors.ErrInvalidCredentials, "profile has no credential")
		}

		credential, err := credentialRepo.FindByID(ctx, *profile.AuthID)
		if err != nil {
			if errors.Is(err, repository.ErrCredentialNotFound) {
				srv.log(ctx).Error("Profile references missing credential", slog.Any("user_id", profile.ID))

				return errors.Wrap(domainerrors.ErrAccountInconsistent, "profile without credential")
			}

			return errors.Wrap(err, "failed to find credential")
		}

		// 2. Verify current password
		if !srv.hasher.Check(input.CurrentPassword, credential.PasswordHash) {
			return errors.Wrap(domainerrors.ErrInvalidCredentials, "current password mismatch")
		}

		// 3. Check strength and store the new hash
		if err := srv.hasher.ValidatePasswordStrength(input.NewPassword); err != nil {
			return errors.Wrap(err, "new password rejected")
		}

		return storePassword(ctx, credentialRepo, srv.hasher, credential.ID, input.NewPassword)
	})
	if err != nil {
		return errors.Wrap(err, "failed to change password")
	}

	srv.log(ctx).Info("Password changed", slog.Any("user_id", input.UserID))

	return nil
}

// RequestPasswordReset stores a fresh recovery code on the credential behind email.
// Missing profiles and profiles without credentials are indistinguishable to the caller.
func (srv *sessionService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	issued := false
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		credentialRepo := repoFactory.CredentialRepo()

		// 1. Resolve the credentialed profile
		profile, err := repoFactory.ProfileRepo().FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return nil
			}

			return errors.Wrap(err, "failed to find profile")
		}
		if !profile.HasCredential() {
			return nil
		}

		credential, err := credentialRepo.FindByID(ctx, *profile.AuthID)
		if err != nil {
			if errors.Is(err, repository.ErrCredentialNotFound) {
				srv.log(ctx).Warn("Profile references missing credential", slog.Any("user_id", profile.ID))

				return nil
			}

			return errors.Wrap(err, "failed to find credential")
		}

		// 2. Store a new recovery code
		code, err := srv.tokenService.GenerateRecoveryCode()
		if err != nil {
			return errors.Wrap(err, "failed to generate recovery code")
		}
		if err := credentialRepo.UpdateRecoveryCode(ctx, credential.ID, &code); err != nil {
			return errors.Wrap(err, "failed to store recovery code")
		}

		// Delivery of the code is handled outside this service.
		srv.log(ctx).Debug("Recovery code issued",
			slog.Any("credential_id", credential.ID),
			slog.String("recovery_code", code),
		)
		issued = true

		return nil
	})
	if err != nil {
		srv.metrics.RecordPasswordReset(ctx, resetStageRequest, resultError)

		return errors.Wrap(err, "failed to request password reset")
	}

	if issued {
		srv.metrics.RecordPasswordReset(ctx, resetStageRequest, resetIssued)
	} else {
		srv.metrics.RecordPasswordReset(ctx, resetStageRequest, resetIgnored)
	}

	return nil
}

// ConfirmPasswordReset redeems a recovery code. The code is cleared in the same
// transaction as the password update so it can be used once.
func (srv *sessionService) ConfirmPasswordReset(ctx context.Context, input *usecase.ConfirmPasswordResetInput) error {
	if err := srv.hasher.ValidatePasswordStrength(input.NewPassword); err != nil {
		srv.metrics.RecordPasswordReset(ctx, resetStageConfirm, resetWeak)

		return errors.Wrap(err, "new password rejected")
	}

	username := normalizeUsername(input.Username)

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		credentialRepo := repoFactory.CredentialRepo()

		// 1. Match the stored code
		credential, err := credentialRepo.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repository.ErrCredentialNotFound) {
				return errors.Wrap(domainerrors.ErrInvalidRecoveryCode, "unknown username")
			}

			return errors.Wrap(err, "failed to find credential")
		}
		if !credential.HasRecoveryCode() || !srv.tokenService.Compare(*credential.RecoveryCode, input.RecoveryCode) {
			return errors.Wrap(domainerrors.ErrInvalidRecoveryCode, "recovery code mismatch")
		}

		// 2. Store the new password and burn the code
		if err := storePassword(ctx, credentialRepo, srv.hasher, credential.ID, input.NewPassword); err != nil {
			return err
		}
		if err := credentialRepo.UpdateRecoveryCode(ctx, credential.ID, nil); err != nil {
			return errors.Wrap(err, "failed to clear recovery code")
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidRecoveryCode) {
			srv.metrics.RecordPasswordReset(ctx, resetStageConfirm, resetInvalidCode)
		} else {
			srv.metrics.RecordPasswordReset(ctx, resetStageConfirm, resultError)
		}

		return errors.Wrap(err, "failed to confirm password reset")
	}

	srv.metrics.RecordPasswordReset(ctx, resetStageConfirm, resultSuccess)
	srv.log(ctx).Info("Password reset completed", slog.String("username", username))

	return nil
}

// --- Shared helpers ---

// issueToken overwrites the credential's token. issuedAt becomes the new expiry base.
func issueToken(ctx context.Context, credentialRepo repository.CredentialRepository, tokens service.TokenService, credentialID uuid.UUID, issuedAt time.Time) (string, error) {
	token, err := tokens.GenerateSessionToken()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate session token")
	}
	if err := credentialRepo.UpdateToken(ctx, credentialID, token, issuedAt); err != nil {
		return "", errors.Wrap(err, "failed to store session token")
	}

	return token, nil
}

func storePassword(ctx context.Context, credentialRepo repository.CredentialRepository, hasher service.PasswordHasher, credentialID uuid.UUID, password string) error {
	hash, err := hasher.Hash(password)
	if err != nil {
		return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}
	if err := credentialRepo.UpdatePassword(ctx, credentialID, hash); err != nil {
		return errors.Wrap(err, "failed to store password")
	}

	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
