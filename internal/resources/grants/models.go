package grants

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenGrant is one ledger entry crediting a unified user with project tokens.
type TokenGrant struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUnifiedUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_unified_user_id"`
	Symbol             string    `gorm:"size:20;not null;index" json:"symbol"`
	Amount             int64     `gorm:"not null" json:"amount"`
	Source             string    `gorm:"size:50" json:"source,omitempty"` // purchase, airdrop, reward
	GrantedAt          time.Time `gorm:"not null" json:"granted_at"`
}

func (g *TokenGrant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now().UTC()
	}
	return nil
}

func (TokenGrant) TableName() string {
	return "token_grants"
}

// Balance is the summed amount per token symbol.
type Balance struct {
	Symbol string `json:"symbol"`
	Amount int64  `json:"amount"`
}
