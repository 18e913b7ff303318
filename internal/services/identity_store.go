package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LinkStatus is the outcome of checking or linking a credential.
type LinkStatus string

const (
	StatusNoConflict    LinkStatus = "no_conflict"
	StatusLinked        LinkStatus = "linked"
	StatusAlreadyLinked LinkStatus = "already_linked"
	StatusConflict      LinkStatus = "conflict"
)

// LinkInput describes a credential presented for linking.
type LinkInput struct {
	Provider       string
	ProviderUserID string
	ProviderHandle string
	ProviderEmail  string
	ProviderData   map[string]interface{}
}

// LinkResult reports what Link did. On StatusConflict, OwnerRoot is the other
// account that holds the credential and nothing was written.
type LinkResult struct {
	Status     LinkStatus
	Identity   *models.Identity
	CallerRoot uuid.UUID
	OwnerRoot  uuid.UUID
}

var errLinkRace = errors.New("identity inserted concurrently")

// IdentityStore owns the identities table and the uniqueness of credentials.
type IdentityStore struct {
	db       *gorm.DB
	registry *UserRegistry
	norm     *CredentialNormalizer
	log      *slog.Logger
}

func NewIdentityStore(db *gorm.DB, registry *UserRegistry, norm *CredentialNormalizer, log *slog.Logger) *IdentityStore {
	if log == nil {
		log = slog.Default()
	}
	return &IdentityStore{db: db, registry: registry, norm: norm, log: log}
}

// Normalize canonicalizes a raw credential.
func (s *IdentityStore) Normalize(provider, providerUserID string) (Credential, error) {
	return s.norm.Normalize(provider, providerUserID)
}

// Lookup returns the identity holding the credential, or ErrIdentityNotFound.
func (s *IdentityStore) Lookup(ctx context.Context, provider, providerUserID string) (*models.Identity, error) {
	cred, err := s.norm.Normalize(provider, providerUserID)
	if err != nil {
		return nil, err
	}
	ident, err := s.lookup(s.db.WithContext(ctx), cred)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, ErrIdentityNotFound
	}
	return ident, nil
}

func (s *IdentityStore) lookup(tx *gorm.DB, cred Credential) (*models.Identity, error) {
	var ident models.Identity
	err := tx.Where("provider = ? AND provider_user_id = ?", cred.Provider, cred.ProviderUserID).Take(&ident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	return &ident, nil
}

// Get loads one identity by id.
func (s *IdentityStore) Get(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	var ident models.Identity
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&ident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return &ident, nil
}

// Link attaches the credential to owner's root account. A credential already
// held by another account is reported as a conflict and never moved.
func (s *IdentityStore) Link(ctx context.Context, owner uuid.UUID, in LinkInput) (*LinkResult, error) {
	cred, err := s.norm.Normalize(in.Provider, in.ProviderUserID)
	if err != nil {
		return nil, err
	}

	var result *LinkResult
	for attempt := 0; attempt < 2; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			result, txErr = s.link(tx, owner, cred, in)
			return txErr
		})
		if !errors.Is(err, errLinkRace) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, errLinkRace) {
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		return nil, err
	}

	if result.Status == StatusLinked {
		s.log.Info("identity linked",
			"unified_user_id", result.CallerRoot.String(),
			"action", "link",
			"provider", string(cred.Provider),
		)
	}
	return result, nil
}

func (s *IdentityStore) link(tx *gorm.DB, owner uuid.UUID, cred Credential, in LinkInput) (*LinkResult, error) {
	root, err := s.registry.lockRoot(tx, owner)
	if err != nil {
		return nil, err
	}

	existing, err := s.lookup(tx, cred)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		holder, err := s.registry.find(tx, existing.UnifiedUserID)
		if err != nil {
			return nil, err
		}
		status := StatusAlreadyLinked
		if holder != root.ID {
			status = StatusConflict
		}
		return &LinkResult{Status: status, Identity: existing, CallerRoot: root.ID, OwnerRoot: holder}, nil
	}

	data, err := jsonColumn(in.ProviderData)
	if err != nil {
		return nil, err
	}
	ident := models.Identity{
		UnifiedUserID:  root.ID,
		Provider:       cred.Provider,
		ProviderUserID: cred.ProviderUserID,
		ProviderHandle: DisplayHandle(cred, in.ProviderHandle),
		ProviderEmail:  optionalString(in.ProviderEmail),
		ProviderData:   data,
	}
	if err := tx.Create(&ident).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errLinkRace
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return &LinkResult{Status: StatusLinked, Identity: &ident, CallerRoot: root.ID, OwnerRoot: root.ID}, nil
}

// ListByRoot returns every identity that resolves to root, oldest first.
func (s *IdentityStore) ListByRoot(ctx context.Context, root uuid.UUID) ([]models.Identity, error) {
	return s.listByRoot(s.db.WithContext(ctx), root)
}

func (s *IdentityStore) listByRoot(tx *gorm.DB, root uuid.UUID) ([]models.Identity, error) {
	members, err := s.registry.members(tx, root)
	if err != nil {
		return nil, err
	}
	var idents []models.Identity
	if err := tx.Where("unified_user_id IN ?", members).Order("linked_at ASC").Find(&idents).Error; err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return idents, nil
}

// CountByRoot returns how many identities resolve to root.
func (s *IdentityStore) CountByRoot(ctx context.Context, root uuid.UUID) (int64, error) {
	return s.countByRoot(s.db.WithContext(ctx), root)
}

func (s *IdentityStore) countByRoot(tx *gorm.DB, root uuid.UUID) (int64, error) {
	members, err := s.registry.members(tx, root)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := tx.Model(&models.Identity{}).Where("unified_user_id IN ?", members).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}
	return n, nil
}

// Unlink removes an identity from the requester's account. The last identity
// of an account cannot be removed.
func (s *IdentityStore) Unlink(ctx context.Context, identityID, requester uuid.UUID) error {
	var removed *models.Identity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ident models.Identity
		if err := tx.Where("id = ?", identityID).Take(&ident).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIdentityNotFound
			}
			return fmt.Errorf("failed to load identity: %w", err)
		}

		root, err := s.registry.lockRoot(tx, ident.UnifiedUserID)
		if err != nil {
			return err
		}
		requesterRoot, err := s.registry.find(tx, requester)
		if err != nil {
			return err
		}
		if root.ID != requesterRoot {
			return ErrForbidden
		}

		n, err := s.countByRoot(tx, root.ID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastIdentity
		}

		if err := tx.Delete(&ident).Error; err != nil {
			return fmt.Errorf("failed to delete identity: %w", err)
		}
		removed = &ident
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("identity unlinked",
		"unified_user_id", removed.UnifiedUserID.String(),
		"action", "unlink",
		"provider", string(removed.Provider),
	)
	return nil
}

func jsonColumn(data map[string]interface{}) (datatypes.JSON, error) {
	if len(data) == 0 {
		return datatypes.JSON("{}"), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("invalid json object: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
