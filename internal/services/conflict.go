package services

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LinkCheck is the read-only verdict for a credential the caller presents.
type LinkCheck struct {
	Status     LinkStatus       `json:"status"`
	Identity   *models.Identity `json:"identity,omitempty"`
	CallerRoot uuid.UUID        `json:"caller_unified_user_id"`
	OtherRoot  uuid.UUID        `json:"existing_unified_user_id"`
}

// AccountSummary describes one side of a proposed merge.
type AccountSummary struct {
	UnifiedUser    models.UnifiedUser `json:"unified_user"`
	IdentityCount  int64              `json:"identity_count"`
	ResourceCounts map[string]int64   `json:"resource_counts"`
	ResourceTotal  int64              `json:"resource_total"`
}

// MergePreview shows what a merge of Source into Target would combine.
type MergePreview struct {
	Source  AccountSummary `json:"source"`
	Target  AccountSummary `json:"target"`
	Message string         `json:"message"`
}

// ConflictDetector classifies credentials and builds merge previews. It never
// writes.
type ConflictDetector struct {
	db         *gorm.DB
	registry   *UserRegistry
	identities *IdentityStore
	resources  *resources.Registry
}

func NewConflictDetector(db *gorm.DB, registry *UserRegistry, identities *IdentityStore, res *resources.Registry) *ConflictDetector {
	if res == nil {
		res = resources.NewRegistry()
	}
	return &ConflictDetector{db: db, registry: registry, identities: identities, resources: res}
}

// CheckLink reports whether the credential is free, already the caller's, or
// held by another account.
func (d *ConflictDetector) CheckLink(ctx context.Context, caller uuid.UUID, provider, providerUserID string) (*LinkCheck, error) {
	cred, err := d.identities.Normalize(provider, providerUserID)
	if err != nil {
		return nil, err
	}
	tx := d.db.WithContext(ctx)

	callerRoot, err := d.registry.find(tx, caller)
	if err != nil {
		return nil, err
	}
	existing, err := d.identities.lookup(tx, cred)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &LinkCheck{Status: StatusNoConflict, CallerRoot: callerRoot}, nil
	}

	holder, err := d.registry.find(tx, existing.UnifiedUserID)
	if err != nil {
		return nil, err
	}
	if holder == callerRoot {
		return &LinkCheck{Status: StatusAlreadyLinked, Identity: existing, CallerRoot: callerRoot}, nil
	}
	return &LinkCheck{Status: StatusConflict, Identity: existing, CallerRoot: callerRoot, OtherRoot: holder}, nil
}

// Preview summarizes the roots of source and target for a proposed merge of
// source into target.
func (d *ConflictDetector) Preview(ctx context.Context, source, target uuid.UUID) (*MergePreview, error) {
	tx := d.db.WithContext(ctx)

	src, err := d.summarize(tx, source)
	if err != nil {
		return nil, err
	}
	tgt, err := d.summarize(tx, target)
	if err != nil {
		return nil, err
	}

	return &MergePreview{
		Source: *src,
		Target: *tgt,
		Message: fmt.Sprintf(
			"Merging moves %d identities and %d resources from %q into %q. The merged account will forward to the surviving one.",
			src.IdentityCount, src.ResourceTotal, displayName(&src.UnifiedUser), displayName(&tgt.UnifiedUser),
		),
	}, nil
}

func (d *ConflictDetector) summarize(tx *gorm.DB, id uuid.UUID) (*AccountSummary, error) {
	root, err := d.registry.find(tx, id)
	if err != nil {
		return nil, err
	}
	user, err := d.registry.get(tx, root)
	if err != nil {
		return nil, err
	}
	members, err := d.registry.members(tx, root)
	if err != nil {
		return nil, err
	}

	var identities int64
	if err := tx.Model(&models.Identity{}).Where("unified_user_id IN ?", members).Count(&identities).Error; err != nil {
		return nil, fmt.Errorf("failed to count identities: %w", err)
	}
	counts, err := d.resources.Count(tx, members)
	if err != nil {
		return nil, err
	}

	return &AccountSummary{
		UnifiedUser:    *user,
		IdentityCount:  identities,
		ResourceCounts: counts,
		ResourceTotal:  resources.Total(counts),
	}, nil
}

func displayName(u *models.UnifiedUser) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID.String()
}
