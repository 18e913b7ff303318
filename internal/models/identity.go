package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Identity binds one external credential to its current direct owner.
// (provider, provider_user_id) is unique for all time.
type Identity struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UnifiedUserID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"unified_user_id"`
	Provider       Provider       `gorm:"size:32;not null;uniqueIndex:idx_identities_provider_user,priority:1" json:"provider"`
	ProviderUserID string         `gorm:"size:255;not null;uniqueIndex:idx_identities_provider_user,priority:2" json:"provider_user_id"`
	ProviderHandle string         `gorm:"size:255" json:"provider_handle,omitempty"`
	ProviderEmail  *string        `gorm:"size:255" json:"provider_email,omitempty"`
	ProviderData   datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"provider_data,omitempty"`
	LinkedAt       time.Time      `gorm:"not null;index" json:"linked_at"`
	UnifiedUser    UnifiedUser    `gorm:"foreignKey:UnifiedUserID" json:"-"`
}

func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.LinkedAt.IsZero() {
		i.LinkedAt = time.Now().UTC()
	}
	if len(i.ProviderData) == 0 {
		i.ProviderData = datatypes.JSON("{}")
	}
	return nil
}

func (Identity) TableName() string {
	return "identities"
}
