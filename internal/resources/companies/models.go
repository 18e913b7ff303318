package companies

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is a registered company held by a unified user.
type Company struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUnifiedUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_unified_user_id"`
	Name               string    `gorm:"size:255;not null" json:"name"`
	RegistrationNumber string    `gorm:"size:50" json:"registration_number,omitempty"`
	Status             string    `gorm:"size:30;not null;default:'active'" json:"status"` // active, dissolved
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Company) TableName() string {
	return "companies"
}
