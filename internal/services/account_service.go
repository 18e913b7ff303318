package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MergePreviewOnly marks a merge request answered with a preview because it
// was not confirmed.
const MergePreviewOnly MergeStatus = "preview"

// LinkOutcome is the answer to a link request. On conflict it carries the
// preview and a merge token the caller can redeem to combine the accounts.
type LinkOutcome struct {
	Status                LinkStatus            `json:"status"`
	Identity              *dto.IdentityResponse `json:"identity,omitempty"`
	ExistingUnifiedUserID *uuid.UUID            `json:"existing_unified_user_id,omitempty"`
	Preview               *MergePreview         `json:"preview,omitempty"`
	MergeToken            string                `json:"merge_token,omitempty"`
	ExpiresAt             *time.Time            `json:"expires_at,omitempty"`
}

// MergeOutcome is the answer to a merge request.
type MergeOutcome struct {
	Status  MergeStatus              `json:"status"`
	Preview *MergePreview            `json:"preview,omitempty"`
	Result  *MergeResult             `json:"result,omitempty"`
	User    *dto.UnifiedUserResponse `json:"user,omitempty"`
}

// AccountService is the user-facing surface of the identity engine. Every id
// it receives may be stale and is resolved before use.
type AccountService struct {
	db         *gorm.DB
	registry   *UserRegistry
	identities *IdentityStore
	detector   *ConflictDetector
	tokens     *MergeTokenService
	merges     *MergeOrchestrator
}

func NewAccountService(db *gorm.DB, registry *UserRegistry, identities *IdentityStore, detector *ConflictDetector, tokens *MergeTokenService, merges *MergeOrchestrator) *AccountService {
	return &AccountService{
		db:         db,
		registry:   registry,
		identities: identities,
		detector:   detector,
		tokens:     tokens,
		merges:     merges,
	}
}

// ResolveCaller returns the root account for a session subject.
func (s *AccountService) ResolveCaller(ctx context.Context, subject uuid.UUID) (uuid.UUID, error) {
	return s.registry.Find(ctx, subject)
}

// GetUnifiedUser returns the root account for id with all of its identities.
func (s *AccountService) GetUnifiedUser(ctx context.Context, id uuid.UUID) (*dto.UnifiedUserResponse, error) {
	root, err := s.registry.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	idents, err := s.identities.ListByRoot(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(root, idents)
	return &resp, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, id uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UnifiedUserResponse, error) {
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, errors.New("display name cannot be empty")
		}
		updates["display_name"] = name
	}
	if req.PrimaryEmail != nil {
		updates["primary_email"] = optionalString(*req.PrimaryEmail)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Flags != nil {
		flags, err := jsonColumn(req.Flags)
		if err != nil {
			return nil, err
		}
		updates["flags"] = flags
	}

	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			root, err := s.registry.lockRoot(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Model(root).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update profile: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s.GetUnifiedUser(ctx, id)
}

// LinkIdentity attaches a credential to the caller's account. A credential
// owned by another account is never moved; the caller instead gets a preview
// and a token to merge that account into theirs.
func (s *AccountService) LinkIdentity(ctx context.Context, caller uuid.UUID, req *dto.LinkIdentityRequest) (*LinkOutcome, error) {
	res, err := s.identities.Link(ctx, caller, LinkInput{
		Provider:       req.Provider,
		ProviderUserID: req.ProviderUserID,
		ProviderHandle: req.ProviderHandle,
		ProviderEmail:  req.ProviderEmail,
		ProviderData:   req.ProviderData,
	})
	if err != nil {
		return nil, err
	}

	ident := toIdentityResponse(res.Identity)
	if res.Status != StatusConflict {
		return &LinkOutcome{Status: res.Status, Identity: &ident}, nil
	}

	preview, err := s.detector.Preview(ctx, res.OwnerRoot, res.CallerRoot)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(ctx, res.OwnerRoot, res.CallerRoot, 0)
	if err != nil {
		return nil, err
	}
	other := res.OwnerRoot
	return &LinkOutcome{
		Status:                StatusConflict,
		ExistingUnifiedUserID: &other,
		Preview:               preview,
		MergeToken:            token.Token,
		ExpiresAt:             &token.ExpiresAt,
	}, nil
}

// CheckIdentity classifies a credential without linking it.
func (s *AccountService) CheckIdentity(ctx context.Context, caller uuid.UUID, provider, providerUserID string) (*LinkCheck, error) {
	return s.detector.CheckLink(ctx, caller, provider, providerUserID)
}

// MergeAccounts redeems a merge token on behalf of caller. An unconfirmed
// request returns the preview only.
func (s *AccountService) MergeAccounts(ctx context.Context, caller uuid.UUID, req *dto.MergeAccountsRequest) (*MergeOutcome, error) {
	if strings.TrimSpace(req.MergeToken) == "" {
		return nil, fmt.Errorf("%w: merge_token is required", ErrTokenInvalid)
	}
	return s.merge(ctx, MergeRequest{
		Token:     req.MergeToken,
		Caller:    caller,
		Confirmed: req.Confirmed,
	})
}

// AdminMerge merges two named accounts without a token.
func (s *AccountService) AdminMerge(ctx context.Context, req *dto.AdminMergeRequest) (*MergeOutcome, error) {
	return s.merge(ctx, MergeRequest{
		Source:    req.SourceUnifiedUserID,
		Target:    req.TargetUnifiedUserID,
		Confirmed: req.Confirmed,
	})
}

func (s *AccountService) merge(ctx context.Context, req MergeRequest) (*MergeOutcome, error) {
	if !req.Confirmed {
		preview, err := s.merges.Preview(ctx, req)
		if err != nil {
			return nil, err
		}
		return &MergeOutcome{Status: MergePreviewOnly, Preview: preview}, nil
	}

	result, err := s.merges.ConfirmMerge(ctx, req)
	var stale *StaleMergeError
	if errors.As(err, &stale) && stale.AlreadyCombined() {
		result = &MergeResult{Status: MergeAlreadyApplied, Source: stale.Source, Target: stale.TargetRoot}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	user, err := s.GetUnifiedUser(ctx, result.Target)
	if err != nil {
		return nil, err
	}
	return &MergeOutcome{Status: result.Status, Result: result, User: user}, nil
}

// UnlinkIdentity removes one of the caller's identities.
func (s *AccountService) UnlinkIdentity(ctx context.Context, caller, identityID uuid.UUID) error {
	return s.identities.Unlink(ctx, identityID, caller)
}

// Lineage returns the forwarding chain from id to its root.
func (s *AccountService) Lineage(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return s.registry.Chain(ctx, id)
}

// SweepMergeTokens deletes expired merge token records.
func (s *AccountService) SweepMergeTokens(ctx context.Context) (int64, error) {
	return s.tokens.SweepExpired(ctx)
}

// IdentityOwner resolves the current owner of a stored credential.
func (s *AccountService) IdentityOwner(ctx context.Context, provider, providerUserID string) (*models.UnifiedUser, error) {
	ident, err := s.identities.Lookup(ctx, provider, providerUserID)
	if err != nil {
		return nil, err
	}
	return s.registry.Resolve(ctx, ident.UnifiedUserID)
}
