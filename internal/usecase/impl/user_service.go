package impl

import (
	"context"
	"log/slog"

	deliverycontext "cambio/internal/delivery/context"
	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/repository"
	"cambio/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// userService implements the UserUsecase interface.
type userService struct {
	txManager   repository.TransactionManager
	profileRepo repository.ProfileRepository
	logger      *slog.Logger
}

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	ProfileRepo repository.ProfileRepository
	Logger      *slog.Logger
}

// NewUserService is the constructor for userService.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	return &userService{
		txManager:   params.TxManager,
		profileRepo: params.ProfileRepo,
		logger:      params.Logger,
	}
}

func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// GetProfile returns the public view of a live profile.
func (srv *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*entity.ProfileSummary, error) {
	profile, err := srv.profileRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, errors.Wrap(domainerrors.ErrNotFound, "user not found")
		}

		return nil, errors.Wrap(err, "failed to find profile")
	}

	return profile.Summary(), nil
}

// DeleteProfile removes provider links, the profile and its credential in one transaction.
func (srv *userService) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	var removedLinks int64
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		profileRepo := repoFactory.ProfileRepo()

		// 1. Verify user exists
		profile, err := profileRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return errors.Wrap(domainerrors.ErrNotFound, "user not found")
			}

			return errors.Wrap(err, "failed to find profile")
		}

		// 2. Remove provider links
		removedLinks, err = repoFactory.ExternalAccountRepo().DeleteByUserID(ctx, profile.ID)
		if err != nil {
			return errors.Wrap(err, "failed to delete external accounts")
		}

		// 3. Remove the profile
		if err := profileRepo.Delete(ctx, profile.ID); err != nil {
			return errors.Wrap(err, "failed to delete profile")
		}

		// 4. Remove the credential
		if !profile.HasCredential() {
			return nil
		}
		err = repoFactory.CredentialRepo().Delete(ctx, *profile.AuthID)
		if errors.Is(err, repository.ErrCredentialNotFound) {
			srv.log(ctx).Warn("Deleted profile referenced missing credential", slog.Any("user_id", profile.ID))

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to delete credential")
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete profile")
	}

	srv.log(ctx).Info("Profile deleted", slog.Any("user_id", userID), slog.Int64("external_accounts", removedLinks))

	return nil
}
