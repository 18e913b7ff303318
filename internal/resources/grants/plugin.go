package grants

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin implements the resources.Kind interface for token grants.
type Plugin struct{}

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) ID() string { return "token_grants" }

func (p *Plugin) Models() []interface{} {
	return []interface{}{
		&TokenGrant{},
	}
}

func (p *Plugin) Model() interface{} { return &TokenGrant{} }

func (p *Plugin) OwnerColumn() string { return "owner_unified_user_id" }

func (p *Plugin) RegisterRoutes(router fiber.Router, db *gorm.DB) {
	handler := NewHandler(NewService(db))

	router.Get("/grants", handler.List)
	router.Post("/grants", handler.Create)
	router.Get("/grants/balances", handler.Balances)
}
