// Package model holds the GORM persistence models of the identity tables.
package model

import (
	"time"

	"github.com/google/uuid"
)

// CredentialModel mirrors the 'auth_login' table. Usernames are stored lowercase.
type CredentialModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username     string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_auth_login_username"`
	Password     string    `gorm:"type:varchar(255);not null"`
	RecoveryCode *string   `gorm:"type:varchar(64)"`
	Token        *string   `gorm:"type:varchar(1000);index:idx_auth_login_token"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (CredentialModel) TableName() string {
	return "auth_login"
}
