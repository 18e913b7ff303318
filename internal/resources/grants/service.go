package grants

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrSymbolRequired = errors.New("token symbol is required")
	ErrInvalidAmount  = errors.New("amount must be positive")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(owner uuid.UUID) ([]TokenGrant, error) {
	var out []TokenGrant
	if err := s.db.Where("owner_unified_user_id = ?", owner).Order("granted_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return out, nil
}

func (s *Service) Create(owner uuid.UUID, symbol string, amount int64, source string) (*TokenGrant, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	g := TokenGrant{
		OwnerUnifiedUserID: owner,
		Symbol:             symbol,
		Amount:             amount,
		Source:             strings.TrimSpace(source),
	}
	if err := s.db.Create(&g).Error; err != nil {
		return nil, fmt.Errorf("create grant: %w", err)
	}
	return &g, nil
}

// Balances sums grants per symbol for the owner.
func (s *Service) Balances(owner uuid.UUID) ([]Balance, error) {
	var out []Balance
	err := s.db.Model(&TokenGrant{}).
		Select("symbol, SUM(amount) AS amount").
		Where("owner_unified_user_id = ?", owner).
		Group("symbol").
		Order("symbol ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("sum grants: %w", err)
	}
	return out, nil
}
