package model

import (
	"time"

	"github.com/google/uuid"
)

// SocialAccountModel mirrors the 'social_accounts' table.
// (provider, provider_user_id) is unique across all users.
type SocialAccountModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index"`
	Provider       string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_social_provider_user"`
	ProviderUserID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_social_provider_user"`
	Email          *string   `gorm:"type:varchar(255)"`
	AccessToken    *string   `gorm:"type:text"`
	RefreshToken   *string   `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (SocialAccountModel) TableName() string {
	return "social_accounts"
}
