// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"cambio/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Username string
	Password string
}

// ChangePasswordInput defines the data required to rotate a known password.
type ChangePasswordInput struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
}

// ConfirmPasswordResetInput defines the data required to redeem a recovery code.
type ConfirmPasswordResetInput struct {
	Username     string
	RecoveryCode string
	NewPassword  string
}

// SessionUsecase defines the opaque-token session operations.
type SessionUsecase interface {
	// Login verifies a password and issues a new token, replacing any previous one.
	Login(ctx context.Context, input *LoginInput) (*entity.Session, error)
	// VerifyCredentials checks a username and password without issuing a token.
	VerifyCredentials(ctx context.Context, input *LoginInput) error
	// Validate resolves a bearer token to the caller identity.
	Validate(ctx context.Context, token string) (*entity.Identity, error)
	// Logout acknowledges the request. The token stays valid until it expires.
	Logout(ctx context.Context, identity *entity.Identity) error
	ChangePassword(ctx context.Context, input *ChangePasswordInput) error
	// RequestPasswordReset issues a recovery code when the email belongs to a
	// credentialed profile. It reports success either way.
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, input *ConfirmPasswordResetInput) error
}
