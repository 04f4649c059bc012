package postgres

import (
	"context"
	"time"

	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/repository"
	"cambio/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// credentialRepository implements the domain.CredentialRepository interface using GORM.
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository is the constructor for credentialRepository.
func NewCredentialRepository(db *gorm.DB) repository.CredentialRepository {
	return &credentialRepository{db: db}
}

// Create persists a new credential and copies the generated values back.
func (repo *credentialRepository) Create(ctx context.Context, credential *entity.Credential) error {
	credM := fromCredentialDomain(credential)

	if err := repo.db.WithContext(ctx).Create(credM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrUsernameTaken
		}
		if isNotNullConstraintViolation(err) || isCheckConstraintViolation(err) {
			return domainerrors.ErrUserCreationFailed.WrapMessage("missing required credential information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create credential")
	}

	credential.ID = credM.ID
	credential.CreatedAt = credM.CreatedAt
	credential.UpdatedAt = credM.UpdatedAt

	return nil
}

// FindByID retrieves a credential by primary key.
func (repo *credentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Credential, error) {
	var credM model.CredentialModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&credM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCredentialNotFound
		}

		return nil, errors.Wrap(err, "failed to find credential by id")
	}

	return toCredentialDomain(&credM), nil
}

// FindByUsername retrieves a credential by its lowercase username.
func (repo *credentialRepository) FindByUsername(ctx context.Context, username string) (*entity.Credential, error) {
	var credM model.CredentialModel
	err := repo.db.WithContext(ctx).Where("username = ?", username).First(&credM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCredentialNotFound
		}

		return nil, errors.Wrap(err, "failed to find credential by username")
	}

	return toCredentialDomain(&credM), nil
}

// FindByToken resolves the holder of a session token. The read goes to the
// primary so a token issued a moment ago is never missed on a lagging replica.
func (repo *credentialRepository) FindByToken(ctx context.Context, token string) (*entity.Credential, error) {
	var credM model.CredentialModel
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("token = ?", token).
		First(&credM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCredentialNotFound
		}

		return nil, errors.Wrap(err, "failed to find credential by token")
	}

	return toCredentialDomain(&credM), nil
}

// ExistsByUsername reports whether a username is already registered.
func (repo *credentialRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.CredentialModel{}).
		Where("username = ?", username).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check username")
	}

	return count > 0, nil
}

// UpdateToken replaces the session token; updated_at records the issuance time.
func (repo *credentialRepository) UpdateToken(ctx context.Context, id uuid.UUID, token string, issuedAt time.Time) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"token":      token,
		"updated_at": issuedAt,
	}, "failed to update token")
}

// UpdatePassword stores a new password hash. updated_at is left alone so the
// current session keeps its expiry.
func (repo *credentialRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"password": passwordHash,
	}, "failed to update password")
}

// UpdateRecoveryCode sets or clears the pending reset code.
func (repo *credentialRepository) UpdateRecoveryCode(ctx context.Context, id uuid.UUID, code *string) error {
	return repo.updateColumns(ctx, id, map[string]any{
		"recovery_code": code,
	}, "failed to update recovery code")
}

// Delete removes a credential permanently.
func (repo *credentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.CredentialModel{})
	if result.Error != nil {
		if isForeignKeyConstraintViolation(result.Error) {
			return domainerrors.ErrConflict.WrapMessage("credential still referenced")
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete credential")
	}
	if result.RowsAffected == 0 {
		return repository.ErrCredentialNotFound
	}

	return nil
}

// updateColumns writes the given columns without touching the autoUpdateTime hook.
func (repo *credentialRepository) updateColumns(ctx context.Context, id uuid.UUID, columns map[string]any, msg string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.CredentialModel{}).
		Where("id = ?", id).
		UpdateColumns(columns)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCredentialNotFound
	}

	return nil
}

// --- Mapper Functions ---

// toCredentialDomain converts a GORM CredentialModel to a domain Credential entity.
func toCredentialDomain(data *model.CredentialModel) *entity.Credential {
	if data == nil {
		return nil
	}

	return &entity.Credential{
		ID:           data.ID,
		Username:     data.Username,
		PasswordHash: data.Password,
		RecoveryCode: data.RecoveryCode,
		Token:        data.Token,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}

// fromCredentialDomain converts a domain Credential entity to a GORM CredentialModel.
func fromCredentialDomain(data *entity.Credential) *model.CredentialModel {
	if data == nil {
		return nil
	}

	return &model.CredentialModel{
		ID:           data.ID,
		Username:     data.Username,
		Password:     data.PasswordHash,
		RecoveryCode: data.RecoveryCode,
		Token:        data.Token,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
}
