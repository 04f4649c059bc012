package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserModel mirrors the 'users' table. AuthID references auth_login.id and is
// unique so a credential backs at most one profile. Unique indexes cover live
// rows only so a soft-deleted profile does not hold its email.
type UserModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AuthID         *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_users_auth_id,where:deleted_at IS NULL"`
	Email          *string    `gorm:"type:varchar(255);uniqueIndex:idx_users_email,where:deleted_at IS NULL"`
	Names          *string    `gorm:"type:varchar(255)"`
	Lastnames      *string    `gorm:"type:varchar(255)"`
	ProfileImage   *string    `gorm:"type:text"`
	DocumentNumber *string    `gorm:"type:varchar(50);uniqueIndex:idx_users_document_number,where:deleted_at IS NULL"`
	DocumentType   *string    `gorm:"type:varchar(20)"`
	Phone          *int64
	CodePhone      *string `gorm:"type:varchar(10)"`
	Role           string  `gorm:"type:varchar(20);not null;default:client"`
	IsAgent        bool    `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`

	SocialAccounts []SocialAccountModel `gorm:"foreignKey:UserID"`
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
