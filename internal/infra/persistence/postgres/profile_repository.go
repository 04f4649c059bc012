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

// profileRepository implements the domain.ProfileRepository interface using GORM.
// Soft-deleted rows are excluded by gorm's DeletedAt scope.
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository is the constructor for profileRepository.
func NewProfileRepository(db *gorm.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

// Create persists a new profile.
func (repo *profileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	userM := fromProfileDomain(profile)

	if err := repo.db.WithContext(ctx).Omit("SocialAccounts").Create(userM).Error; err != nil {
		return repo.translateWriteError(err, "failed to create profile", domainerrors.ErrUserCreationFailed)
	}

	profile.ID = userM.ID
	profile.CreatedAt = userM.CreatedAt
	profile.UpdatedAt = userM.UpdatedAt

	return nil
}

// FindByID retrieves a live profile by its ID.
func (repo *profileRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Profile, error) {
	return repo.first(ctx, "failed to find profile by id", "id = ?", id)
}

// FindByAuthID retrieves the live profile attached to a credential.
func (repo *profileRepository) FindByAuthID(ctx context.Context, authID uuid.UUID) (*entity.Profile, error) {
	return repo.first(ctx, "failed to find profile by auth id", "auth_id = ?", authID)
}

// FindByEmail retrieves a live profile by email, ignoring case.
func (repo *profileRepository) FindByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	return repo.first(ctx, "failed to find profile by email", "LOWER(email) = LOWER(?)", email)
}

// AttachCredential links a credential to a profile that has none yet.
func (repo *profileRepository) AttachCredential(ctx context.Context, id, authID uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ? AND auth_id IS NULL", id).
		Update("auth_id", authID)
	if result.Error != nil {
		return repo.translateWriteError(result.Error, "failed to attach credential", domainerrors.ErrUserUpdateFailed)
	}
	if result.RowsAffected == 0 {
		return repository.ErrProfileNotFound
	}

	return nil
}

// Update saves every mutable column of a profile.
func (repo *profileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	userM := fromProfileDomain(profile)

	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{ID: profile.ID}).
		Select("auth_id", "email", "names", "lastnames", "profile_image", "document_number",
			"document_type", "phone", "code_phone", "role", "is_agent", "updated_at").
		Updates(userM)
	if result.Error != nil {
		return repo.translateWriteError(result.Error, "failed to update profile", domainerrors.ErrUserUpdateFailed)
	}
	if result.RowsAffected == 0 {
		return repository.ErrProfileNotFound
	}

	profile.UpdatedAt = userM.UpdatedAt

	return nil
}

// Delete soft-deletes a profile. auth_id is released first so the credential
// can be removed in the same transaction.
func (repo *profileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := repo.db.WithContext(ctx)

	if err := db.Model(&model.UserModel{}).Where("id = ?", id).Update("auth_id", nil).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to detach credential")
	}

	result := db.Where("id = ?", id).Delete(&model.UserModel{})
	if result.Error != nil {
		if isForeignKeyConstraintViolation(result.Error) {
			return domainerrors.ErrConflict.WrapMessage("profile still referenced")
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete profile")
	}
	if result.RowsAffected == 0 {
		return repository.ErrProfileNotFound
	}

	return nil
}

func (repo *profileRepository) first(ctx context.Context, msg string, query string, args ...any) (*entity.Profile, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).Where(query, args...).First(&userM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProfileNotFound
		}

		return nil, errors.Wrap(err, msg)
	}

	return toProfileDomain(&userM), nil
}

// translateWriteError converts PostgreSQL errors to domain errors.
func (repo *profileRepository) translateWriteError(err error, msg string, fallback *domainerrors.BaseError) error {
	if isUniqueConstraintViolation(err) {
		switch violatedConstraint(err) {
		case constraintUserEmail:
			return repository.ErrEmailTaken
		case constraintUserAuthID:
			return domainerrors.ErrConflict.WrapMessage("credential already attached to another profile")
		default:
			return domainerrors.ErrUserAlreadyExists.WrapMessage(msg)
		}
	}
	if isForeignKeyConstraintViolation(err) {
		return fallback.WrapMessage("invalid credential reference")
	}
	if isNotNullConstraintViolation(err) || isCheckConstraintViolation(err) {
		return fallback.WrapMessage("missing required profile information")
	}

	return domainerrors.NewDatabaseExecuteError(err, msg)
}

// --- Mapper Functions ---

// toProfileDomain converts a GORM UserModel to a domain Profile entity.
func toProfileDomain(data *model.UserModel) *entity.Profile {
	if data == nil {
		return nil
	}

	profile := &entity.Profile{
		ID:             data.ID,
		AuthID:         data.AuthID,
		Email:          data.Email,
		Names:          data.Names,
		Lastnames:      data.Lastnames,
		ProfileImage:   data.ProfileImage,
		DocumentNumber: data.DocumentNumber,
		Phone:          data.Phone,
		CodePhone:      data.CodePhone,
		Role:           entity.Role(data.Role),
		IsAgent:        data.IsAgent,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
	if data.DocumentType != nil {
		profile.DocumentType = entity.DocumentType(*data.DocumentType)
	}

	return profile
}

// fromProfileDomain converts a domain Profile entity to a GORM UserModel.
func fromProfileDomain(data *entity.Profile) *model.UserModel {
	if data == nil {
		return nil
	}

	userM := &model.UserModel{
		ID:             data.ID,
		AuthID:         data.AuthID,
		Email:          data.Email,
		Names:          data.Names,
		Lastnames:      data.Lastnames,
		ProfileImage:   data.ProfileImage,
		DocumentNumber: data.DocumentNumber,
		Phone:          data.Phone,
		CodePhone:      data.CodePhone,
		Role:           string(data.Role),
		IsAgent:        data.IsAgent,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
	if userM.Role == "" {
		userM.Role = string(entity.RoleClient)
	}
	if data.DocumentType != "" {
		docType := string(data.DocumentType)
		userM.DocumentType = &docType
	}

	return userM
}
