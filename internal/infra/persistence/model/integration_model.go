package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IntegrationModel mirrors the 'integrations' table. Config is free-form JSON whose
// shape depends on IntegrationType.
type IntegrationModel struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name            string         `gorm:"type:varchar(100);not null"`
	Provider        string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_integrations_provider"`
	IntegrationType string         `gorm:"type:varchar(20);not null"`
	Config          datatypes.JSON `gorm:"type:jsonb"`
	Description     *string        `gorm:"type:text"`
	IsActive        bool           `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName explicitly sets the table name for GORM.
func (IntegrationModel) TableName() string {
	return "integrations"
}

// AllModels lists every model for schema migration.
func AllModels() []any {
	return []any{
		&CredentialModel{},
		&UserModel{},
		&SocialAccountModel{},
		&IntegrationModel{},
	}
}
