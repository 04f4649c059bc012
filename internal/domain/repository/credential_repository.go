// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"cambio/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for credential persistence.
var (
	// ErrCredentialNotFound is returned when no credential matches the lookup.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrUsernameTaken is returned when a credential insert hits the username unique index.
	ErrUsernameTaken = errors.New("username already taken")
)

// CredentialRepository persists authentication records.
// Usernames are expected to be lowercased by the caller.
type CredentialRepository interface {
	Create(ctx context.Context, credential *entity.Credential) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Credential, error)
	FindByUsername(ctx context.Context, username string) (*entity.Credential, error)
	// FindByToken looks up the credential currently holding token.
	FindByToken(ctx context.Context, token string) (*entity.Credential, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// UpdateToken overwrites the session token and stamps updated_at with issuedAt.
	UpdateToken(ctx context.Context, id uuid.UUID, token string, issuedAt time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// UpdateRecoveryCode stores code, or clears it when code is nil.
	UpdateRecoveryCode(ctx context.Context, id uuid.UUID, code *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
