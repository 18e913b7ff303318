package resources

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind defines an owned-resource type. Every row of Model is owned by the
// unified user stored in OwnerColumn, and moves with that owner on merge.
type Kind interface {
	// ID returns the unique resource kind identifier (e.g. "companies").
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// Model returns the model holding the owner column.
	Model() interface{}

	// OwnerColumn names the column that references the owning unified user.
	OwnerColumn() string

	// RegisterRoutes mounts resource routes on the given Fiber group.
	// The group has JWT and caller resolution applied.
	RegisterRoutes(router fiber.Router, db *gorm.DB)
}

// Registry holds every owned-resource kind known to the engine.
type Registry struct {
	kinds []Kind
}

func NewRegistry(kinds ...Kind) *Registry {
	return &Registry{kinds: kinds}
}

func (r *Registry) Kinds() []Kind {
	return r.kinds
}

// Models returns the models of all kinds, for migration.
func (r *Registry) Models() []interface{} {
	var out []interface{}
	for _, k := range r.kinds {
		out = append(out, k.Models()...)
	}
	return out
}

// Count returns, per kind, the number of resources owned by any of owners.
func (r *Registry) Count(tx *gorm.DB, owners []uuid.UUID) (map[string]int64, error) {
	counts := make(map[string]int64, len(r.kinds))
	for _, k := range r.kinds {
		if len(owners) == 0 {
			counts[k.ID()] = 0
			continue
		}
		var n int64
		if err := tx.Model(k.Model()).Where(k.OwnerColumn()+" IN ?", owners).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", k.ID(), err)
		}
		counts[k.ID()] = n
	}
	return counts, nil
}

// Reassign re-points every resource owned by any of from to the new owner.
// It returns the number of rows moved per kind.
func (r *Registry) Reassign(tx *gorm.DB, from []uuid.UUID, to uuid.UUID) (map[string]int64, error) {
	moved := make(map[string]int64, len(r.kinds))
	for _, k := range r.kinds {
		if len(from) == 0 {
			moved[k.ID()] = 0
			continue
		}
		res := tx.Model(k.Model()).Where(k.OwnerColumn()+" IN ?", from).Update(k.OwnerColumn(), to)
		if res.Error != nil {
			return nil, fmt.Errorf("reassign %s: %w", k.ID(), res.Error)
		}
		moved[k.ID()] = res.RowsAffected
	}
	return moved, nil
}

// Total sums a per-kind count map.
func Total(counts map[string]int64) int64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	return n
}
