package repository

import (
	"context"
	"errors"

	"cambio/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrExternalAccountNotFound is returned when no link exists for the lookup.
var ErrExternalAccountNotFound = errors.New("external account not found")

// ExternalAccountRepository persists provider links.
// Create returns domainerrors.ErrLinkConflict when (provider, provider_user_id) already exists.
type ExternalAccountRepository interface {
	Create(ctx context.Context, account *entity.ExternalAccount) error
	FindByProviderUserID(ctx context.Context, provider entity.ProviderType, providerUserID string) (*entity.ExternalAccount, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.ExternalAccount, error)
	// UpdateTokens refreshes the provider session metadata of a link.
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken *string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}
