package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MergeStatus is the outcome of a confirmed merge.
type MergeStatus string

const (
	MergeCommitted      MergeStatus = "merged"
	MergeAlreadyApplied MergeStatus = "already_merged"
)

// MergeRequest names the accounts to combine, either through a merge token or
// as an explicit pair. When Caller is set it must resolve to one side.
type MergeRequest struct {
	Token     string
	Source    uuid.UUID
	Target    uuid.UUID
	Caller    uuid.UUID
	Confirmed bool
}

// MergeResult reports a merge. Target is the surviving root.
type MergeResult struct {
	Status          MergeStatus      `json:"status"`
	Source          uuid.UUID        `json:"source_unified_user_id"`
	Target          uuid.UUID        `json:"target_unified_user_id"`
	MovedIdentities int64            `json:"moved_identities"`
	MovedResources  map[string]int64 `json:"moved_resources"`
	MergedAt        time.Time        `json:"merged_at"`
}

// MergeOrchestrator performs confirmed merges as one transaction.
type MergeOrchestrator struct {
	db        *gorm.DB
	registry  *UserRegistry
	tokens    *MergeTokenService
	detector  *ConflictDetector
	resources *resources.Registry
	log       *slog.Logger
	now       func() time.Time

	// afterIdentitiesMoved runs inside the merge transaction once identities
	// are re-pointed. Tests use it to force a mid-merge failure.
	afterIdentitiesMoved func(tx *gorm.DB) error
}

func NewMergeOrchestrator(db *gorm.DB, registry *UserRegistry, tokens *MergeTokenService, detector *ConflictDetector, res *resources.Registry, log *slog.Logger) *MergeOrchestrator {
	if res == nil {
		res = resources.NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &MergeOrchestrator{
		db:        db,
		registry:  registry,
		tokens:    tokens,
		detector:  detector,
		resources: res,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Preview resolves the request and describes the merge without performing it.
func (o *MergeOrchestrator) Preview(ctx context.Context, req MergeRequest) (*MergePreview, error) {
	source, target, _, err := o.intent(ctx, req)
	if errors.Is(err, errReplay) {
		return nil, ErrTokenConsumed
	}
	if err != nil {
		return nil, err
	}
	if err := o.checkFresh(ctx, req.Caller, source, target); err != nil {
		return nil, err
	}
	return o.detector.Preview(ctx, source, target)
}

// ConfirmMerge folds source into target: identities and owned resources move
// to target, source is tombstoned, and the merge token (if any) is consumed.
// Either all of that commits or none of it does.
func (o *MergeOrchestrator) ConfirmMerge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if !req.Confirmed {
		return nil, ErrMergeNotConfirmed
	}

	source, target, tokenID, err := o.intent(ctx, req)
	if errors.Is(err, errReplay) {
		root, ferr := o.registry.Find(ctx, target)
		if ferr != nil {
			return nil, ferr
		}
		srcRoot, ferr := o.registry.Find(ctx, source)
		if ferr != nil {
			return nil, ferr
		}
		if err := o.authorizeCaller(ctx, req.Caller, srcRoot, root); err != nil {
			return nil, err
		}
		return &MergeResult{Status: MergeAlreadyApplied, Source: source, Target: root}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := o.checkFresh(ctx, req.Caller, source, target); err != nil {
		return nil, err
	}

	var result *MergeResult
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = o.apply(tx, source, target, tokenID)
		return txErr
	})
	if err != nil {
		o.log.Warn("merge aborted",
			"unified_user_id", target.String(),
			"action", "merge",
			"source_unified_user_id", source.String(),
			"error", err.Error(),
		)
		return nil, err
	}

	o.log.Info("accounts merged",
		"unified_user_id", target.String(),
		"action", "merge",
		"source_unified_user_id", source.String(),
		"moved_identities", result.MovedIdentities,
		"moved_resources", resources.Total(result.MovedResources),
	)
	return result, nil
}

var errReplay = errors.New("merge token already redeemed")

func (o *MergeOrchestrator) intent(ctx context.Context, req MergeRequest) (source, target, tokenID uuid.UUID, err error) {
	if req.Token == "" {
		if req.Source == uuid.Nil || req.Target == uuid.Nil {
			return uuid.Nil, uuid.Nil, uuid.Nil, ErrMergeTargetMissing
		}
		return req.Source, req.Target, uuid.Nil, nil
	}

	in, err := o.tokens.Verify(ctx, req.Token)
	if errors.Is(err, ErrTokenConsumed) && in != nil {
		return in.Source, in.Target, in.TokenID, errReplay
	}
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return in.Source, in.Target, in.TokenID, nil
}

// checkFresh requires the caller, if any, to own the current root of one
// side, and source and target to still be distinct roots.
func (o *MergeOrchestrator) checkFresh(ctx context.Context, caller, source, target uuid.UUID) error {
	if source == target {
		return ErrMergeSelf
	}
	srcRoot, err := o.registry.Find(ctx, source)
	if err != nil {
		return err
	}
	tgtRoot, err := o.registry.Find(ctx, target)
	if err != nil {
		return err
	}
	if err := o.authorizeCaller(ctx, caller, srcRoot, tgtRoot); err != nil {
		return err
	}
	if srcRoot != source || tgtRoot != target || srcRoot == tgtRoot {
		return &StaleMergeError{Source: source, Target: target, SourceRoot: srcRoot, TargetRoot: tgtRoot}
	}
	return nil
}

// authorizeCaller requires caller, when set, to resolve to one of roots.
func (o *MergeOrchestrator) authorizeCaller(ctx context.Context, caller uuid.UUID, roots ...uuid.UUID) error {
	if caller == uuid.Nil {
		return nil
	}
	callerRoot, err := o.registry.Find(ctx, caller)
	if err != nil {
		return err
	}
	for _, r := range roots {
		if callerRoot == r {
			return nil
		}
	}
	return ErrForbidden
}

func (o *MergeOrchestrator) apply(tx *gorm.DB, source, target, tokenID uuid.UUID) (*MergeResult, error) {
	first, second := source, target
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*models.UnifiedUser, 2)
	for _, id := range []uuid.UUID{first, second} {
		u, err := o.registry.lock(tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = u
	}
	if !locked[source].IsRoot() || !locked[target].IsRoot() {
		return nil, o.registry.stale(tx, source, target)
	}

	lineage, err := o.registry.members(tx, source)
	if err != nil {
		return nil, err
	}

	moved := tx.Model(&models.Identity{}).
		Where("unified_user_id IN ?", lineage).
		Update("unified_user_id", target)
	if moved.Error != nil {
		return nil, fmt.Errorf("failed to move identities: %w", moved.Error)
	}
	if o.afterIdentitiesMoved != nil {
		if err := o.afterIdentitiesMoved(tx); err != nil {
			return nil, err
		}
	}

	movedResources, err := o.resources.Reassign(tx, lineage, target)
	if err != nil {
		return nil, err
	}

	if err := o.registry.compress(tx, lineage, source, target); err != nil {
		return nil, err
	}
	if err := o.registry.registerMerge(tx, source, target); err != nil {
		return nil, err
	}
	if tokenID != uuid.Nil {
		if err := o.tokens.Consume(tx, tokenID); err != nil {
			return nil, err
		}
	}

	return &MergeResult{
		Status:          MergeCommitted,
		Source:          source,
		Target:          target,
		MovedIdentities: moved.RowsAffected,
		MovedResources:  movedResources,
		MergedAt:        o.now(),
	}, nil
}
