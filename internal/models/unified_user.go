package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UnifiedUser is the canonical account every linked credential resolves to.
// Rows are never deleted: a merged account stays behind as a forwarding
// tombstone with MergedInto set.
type UnifiedUser struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName    string         `gorm:"size:255" json:"display_name"`
	PrimaryEmail   *string        `gorm:"size:255" json:"primary_email"`
	AvatarURL      string         `gorm:"type:text" json:"avatar_url"`
	Flags          datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"flags"`
	MergedInto     *uuid.UUID     `gorm:"type:uuid;index" json:"merged_into,omitempty"`
	MergedAt       *time.Time     `json:"merged_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	MergedIntoUser *UnifiedUser   `gorm:"foreignKey:MergedInto" json:"-"`
}

func (u *UnifiedUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if len(u.Flags) == 0 {
		u.Flags = datatypes.JSON("{}")
	}
	return nil
}

// IsRoot reports whether the account has not been merged away.
func (u *UnifiedUser) IsRoot() bool {
	return u.MergedInto == nil
}

func (UnifiedUser) TableName() string {
	return "unified_users"
}
