package companies

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNameRequired = errors.New("company name is required")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns the companies owned by the given root account.
func (s *Service) List(owner uuid.UUID) ([]Company, error) {
	var out []Company
	if err := s.db.Where("owner_unified_user_id = ?", owner).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return out, nil
}

func (s *Service) Create(owner uuid.UUID, name, registrationNumber string) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	c := Company{
		OwnerUnifiedUserID: owner,
		Name:               name,
		RegistrationNumber: strings.TrimSpace(registrationNumber),
		Status:             "active",
	}
	if err := s.db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	return &c, nil
}
