package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken is a hashed session refresh credential. UnifiedUserID keeps the
// id the session was minted for; it may point at a merged-away account and is
// resolved on use.
type RefreshToken struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UnifiedUserID uuid.UUID   `gorm:"type:uuid;not null;index" json:"unified_user_id"`
	TokenHash     string      `gorm:"uniqueIndex;not null;size:64" json:"-"`
	ExpiresAt     time.Time   `gorm:"not null" json:"expires_at"`
	Revoked       bool        `gorm:"default:false" json:"revoked"`
	CreatedAt     time.Time   `json:"created_at"`
	UnifiedUser   UnifiedUser `gorm:"foreignKey:UnifiedUserID" json:"-"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
