package repository

import (
	"context"
	"errors"

	"cambio/internal/domain/entity"
)

// ErrIntegrationNotFound is returned when no active integration exists for a provider.
var ErrIntegrationNotFound = errors.New("integration not found")

// IntegrationRepository reads third-party configuration records.
type IntegrationRepository interface {
	FindByProvider(ctx context.Context, provider string) (*entity.Integration, error)
}
