package repository

import (
	"context"
	"errors"

	"cambio/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrProfileNotFound is returned when no live profile matches the lookup.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrEmailTaken is returned when a profile insert hits the email unique index.
	ErrEmailTaken = errors.New("email already registered")
)

// ProfileRepository persists business profiles. Soft-deleted rows are invisible.
type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Profile, error)
	FindByAuthID(ctx context.Context, authID uuid.UUID) (*entity.Profile, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*entity.Profile, error)
	// AttachCredential sets auth_id on a profile that has none.
	AttachCredential(ctx context.Context, id, authID uuid.UUID) error
	Update(ctx context.Context, profile *entity.Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
}
