package usecase

import (
	"context"

	"cambio/internal/domain/entity"

	"github.com/google/uuid"
)

// UserUsecase defines the profile operations available to an authenticated caller.
type UserUsecase interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.ProfileSummary, error)
	// DeleteProfile removes the profile, its provider links and its credential together.
	DeleteProfile(ctx context.Context, userID uuid.UUID) error
}
