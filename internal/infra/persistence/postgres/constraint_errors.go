package postgres

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes of the integrity constraint violation class.
const (
	sqlStateNotNullViolation    = "23502"
	sqlStateForeignKeyViolation = "23503"
	sqlStateUniqueViolation     = "23505"
	sqlStateCheckViolation      = "23514"
)

// Index names whose violations carry domain meaning.
const (
	constraintUsername       = "idx_auth_login_username"
	constraintUserAuthID     = "idx_users_auth_id"
	constraintUserEmail      = "idx_users_email"
	constraintSocialProvider = "idx_social_provider_user"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}

	return nil, false
}

// Helper functions for PostgreSQL error checking.
// Both gorm's translated sentinels and raw driver errors are recognised.
func isUniqueConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	pgErr, ok := pgError(err)

	return ok && pgErr.Code == sqlStateUniqueViolation
}

// violatedConstraint returns the constraint named by the driver, or "" when unknown.
func violatedConstraint(err error) string {
	if pgErr, ok := pgError(err); ok {
		return pgErr.ConstraintName
	}

	return ""
}

func isForeignKeyConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	pgErr, ok := pgError(err)

	return ok && pgErr.Code == sqlStateForeignKeyViolation
}

func isNotNullConstraintViolation(err error) bool {
	pgErr, ok := pgError(err)

	return ok && pgErr.Code == sqlStateNotNullViolation
}

func isCheckConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	pgErr, ok := pgError(err)

	return ok && pgErr.Code == sqlStateCheckViolation
}
