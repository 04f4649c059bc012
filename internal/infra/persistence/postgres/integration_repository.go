package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"cambio/config"
	"cambio/internal/domain/entity"
	"cambio/internal/domain/repository"
	"cambio/internal/infra/persistence/model"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// integrationRepository reads the integrations table.
type integrationRepository struct {
	db *gorm.DB
}

// FindByProvider returns the active integration of provider.
func (repo *integrationRepository) FindByProvider(ctx context.Context, provider string) (*entity.Integration, error) {
	var integrationM model.IntegrationModel
	err := repo.db.WithContext(ctx).
		Where("provider = ? AND is_active = ?", provider, true).
		First(&integrationM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrIntegrationNotFound
		}

		return nil, errors.Wrap(err, "failed to find integration")
	}

	return toIntegrationDomain(&integrationM)
}

// IntegrationParams defines the dependencies of the cached integration repository.
type IntegrationParams struct {
	fx.In

	DB     *gorm.DB
	Config *config.Config
	Logger *slog.Logger
}

// cachedIntegrationRepository keeps provider configuration in process for a
// short TTL. Concurrent misses for one provider share a single query.
// Not-found results are not cached so a newly activated provider is seen on the next call.
type cachedIntegrationRepository struct {
	next   repository.IntegrationRepository
	cache  *cache.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewIntegrationRepository builds the integration repository behind its cache.
func NewIntegrationRepository(params IntegrationParams) repository.IntegrationRepository {
	return newCachedIntegrationRepository(
		&integrationRepository{db: params.DB},
		params.Config.OAuth.ConfigCacheTTL,
		params.Logger,
	)
}

func newCachedIntegrationRepository(next repository.IntegrationRepository, ttl time.Duration, logger *slog.Logger) *cachedIntegrationRepository {
	return &cachedIntegrationRepository{
		next:   next,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (repo *cachedIntegrationRepository) FindByProvider(ctx context.Context, provider string) (*entity.Integration, error) {
	if cached, ok := repo.cache.Get(provider); ok {
		integration := *cached.(*entity.Integration)

		return &integration, nil
	}

	v, err, shared := repo.group.Do(provider, func() (any, error) {
		integration, err := repo.next.FindByProvider(context.WithoutCancel(ctx), provider)
		if err != nil {
			return nil, err
		}
		repo.cache.SetDefault(provider, integration)

		return integration, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		repo.logger.DebugContext(ctx, "Integration lookup shared", slog.String("provider", provider))
	}

	integration := *v.(*entity.Integration)

	return &integration, nil
}

// --- Mapper Functions ---

// toIntegrationDomain converts a GORM IntegrationModel to a domain Integration entity.
func toIntegrationDomain(data *model.IntegrationModel) (*entity.Integration, error) {
	integration := &entity.Integration{
		ID:          data.ID,
		Name:        data.Name,
		Provider:    data.Provider,
		Type:        entity.IntegrationType(data.IntegrationType),
		Description: data.Description,
		IsActive:    data.IsActive,
	}

	if len(data.Config) > 0 {
		if err := json.Unmarshal(data.Config, &integration.Config); err != nil {
			return nil, errors.Wrapf(err, "invalid config for integration %s", data.Provider)
		}
	}

	return integration, nil
}
