package postgres

import (
	"context"

	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/repository"
	"cambio/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// externalAccountRepository implements the domain.ExternalAccountRepository interface using GORM.
type externalAccountRepository struct {
	db *gorm.DB
}

// NewExternalAccountRepository is the constructor for externalAccountRepository.
func NewExternalAccountRepository(db *gorm.DB) repository.ExternalAccountRepository {
	return &externalAccountRepository{db: db}
}

// Create persists a provider link. A duplicate (provider, provider_user_id)
// surfaces as ErrLinkConflict so the caller can re-resolve the link.
func (repo *externalAccountRepository) Create(ctx context.Context, account *entity.ExternalAccount) error {
	accountM := fromExternalAccountDomain(account)

	if err := repo.db.WithContext(ctx).Create(accountM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			constraint := violatedConstraint(err)
			if constraint == "" || constraint == constraintSocialProvider {
				return errors.Wrapf(domainerrors.ErrLinkConflict, "%s account %s already linked",
					account.Provider, account.ProviderUserID)
			}

			return domainerrors.ErrConflict.WrapMessage("external account already exists")
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrUserCreationFailed.WrapMessage("invalid user reference")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrUserCreationFailed.WrapMessage("missing required link information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create external account")
	}

	account.ID = accountM.ID
	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// FindByProviderUserID retrieves the link of a provider identity.
func (repo *externalAccountRepository) FindByProviderUserID(ctx context.Context, provider entity.ProviderType, providerUserID string) (*entity.ExternalAccount, error) {
	var accountM model.SocialAccountModel
	err := repo.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", string(provider), providerUserID).
		First(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrExternalAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find external account")
	}

	return toExternalAccountDomain(&accountM), nil
}

// ListByUserID returns every link owned by a profile.
func (repo *externalAccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.ExternalAccount, error) {
	var accountModels []*model.SocialAccountModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&accountModels).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list external accounts")
	}

	accounts := make([]*entity.ExternalAccount, 0, len(accountModels))
	for _, accountM := range accountModels {
		accounts = append(accounts, toExternalAccountDomain(accountM))
	}

	return accounts, nil
}

// UpdateTokens stores the latest provider tokens. A nil refresh token keeps the old one.
func (repo *externalAccountRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken *string) error {
	columns := map[string]any{"access_token": accessToken}
	if refreshToken != nil {
		columns["refresh_token"] = refreshToken
	}

	result := repo.db.WithContext(ctx).
		Model(&model.SocialAccountModel{}).
		Where("id = ?", id).
		Updates(columns)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update external account tokens")
	}
	if result.RowsAffected == 0 {
		return repository.ErrExternalAccountNotFound
	}

	return nil
}

// DeleteByUserID removes every link of a profile and reports how many were removed.
func (repo *externalAccountRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := repo.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.SocialAccountModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete external accounts")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toExternalAccountDomain converts a GORM SocialAccountModel to a domain ExternalAccount entity.
func toExternalAccountDomain(data *model.SocialAccountModel) *entity.ExternalAccount {
	if data == nil {
		return nil
	}

	return &entity.ExternalAccount{
		ID:             data.ID,
		UserID:         data.UserID,
		Provider:       entity.ProviderType(data.Provider),
		ProviderUserID: data.ProviderUserID,
		Email:          data.Email,
		AccessToken:    data.AccessToken,
		RefreshToken:   data.RefreshToken,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

// fromExternalAccountDomain converts a domain ExternalAccount entity to a GORM SocialAccountModel.
func fromExternalAccountDomain(data *entity.ExternalAccount) *model.SocialAccountModel {
	if data == nil {
		return nil
	}

	return &model.SocialAccountModel{
		ID:             data.ID,
		UserID:         data.UserID,
		Provider:       string(data.Provider),
		ProviderUserID: data.ProviderUserID,
		Email:          data.Email,
		AccessToken:    data.AccessToken,
		RefreshToken:   data.RefreshToken,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}
