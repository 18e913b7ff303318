package models

import (
	"time"

	"github.com/google/uuid"
)

// MergeToken records an issued merge authorization so that it can be
// redeemed exactly once. The signed token itself is held by the client.
type MergeToken struct {
	TokenID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"token_id"`
	SourceUnifiedUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"source_unified_user_id"`
	TargetUnifiedUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"target_unified_user_id"`
	Nonce               string     `gorm:"size:64;not null" json:"-"`
	IssuedAt            time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt           time.Time  `gorm:"not null;index" json:"expires_at"`
	Consumed            bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt          *time.Time `json:"consumed_at,omitempty"`
}

func (MergeToken) TableName() string {
	return "merge_tokens"
}
