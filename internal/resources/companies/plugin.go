package companies

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Plugin implements the resources.Kind interface for companies.
type Plugin struct{}

// New creates a new companies Plugin.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) ID() string { return "companies" }

func (p *Plugin) Models() []interface{} {
	return []interface{}{
		&Company{},
	}
}

func (p *Plugin) Model() interface{} { return &Company{} }

func (p *Plugin) OwnerColumn() string { return "owner_unified_user_id" }

func (p *Plugin) RegisterRoutes(router fiber.Router, db *gorm.DB) {
	handler := NewHandler(NewService(db))

	router.Get("/companies", handler.List)
	router.Post("/companies", handler.Create)
}
