package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultMaxResolveDepth = 64

// UserRegistry maintains the merge forest over unified users. Every account
// either is a root or forwards to the account it was merged into, and Find
// follows those forwards to the surviving account.
type UserRegistry struct {
	db       *gorm.DB
	maxDepth int
	log      *slog.Logger
	now      func() time.Time
}

func NewUserRegistry(db *gorm.DB, maxDepth int, log *slog.Logger) *UserRegistry {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxResolveDepth
	}
	if log == nil {
		log = slog.Default()
	}
	return &UserRegistry{
		db:       db,
		maxDepth: maxDepth,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a fresh root account.
func (r *UserRegistry) Create(ctx context.Context, u *models.UnifiedUser) error {
	return r.create(r.db.WithContext(ctx), u)
}

func (r *UserRegistry) create(tx *gorm.DB, u *models.UnifiedUser) error {
	u.MergedInto = nil
	u.MergedAt = nil
	if err := tx.Create(u).Error; err != nil {
		return fmt.Errorf("failed to create unified user: %w", err)
	}
	return nil
}

// Get loads one account row without following forwards.
func (r *UserRegistry) Get(ctx context.Context, id uuid.UUID) (*models.UnifiedUser, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *UserRegistry) get(tx *gorm.DB, id uuid.UUID) (*models.UnifiedUser, error) {
	var u models.UnifiedUser
	if err := tx.Where("id = ?", id).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load unified user: %w", err)
	}
	return &u, nil
}

// Find returns the root account id reached from id.
func (r *UserRegistry) Find(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// Resolve returns the root account reached from id.
func (r *UserRegistry) Resolve(ctx context.Context, id uuid.UUID) (*models.UnifiedUser, error) {
	tx := r.db.WithContext(ctx)
	root, err := r.find(tx, id)
	if err != nil {
		return nil, err
	}
	return r.get(tx, root)
}

// Chain returns the forwarding path from id to its root, both inclusive.
func (r *UserRegistry) Chain(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return r.chain(r.db.WithContext(ctx), id)
}

func (r *UserRegistry) find(tx *gorm.DB, id uuid.UUID) (uuid.UUID, error) {
	path, err := r.chain(tx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return path[len(path)-1], nil
}

func (r *UserRegistry) chain(tx *gorm.DB, id uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	path := make([]uuid.UUID, 0, 4)
	cur := id

	for hops := 0; hops <= r.maxDepth; hops++ {
		if _, ok := seen[cur]; ok {
			return nil, r.corrupt(id, fmt.Sprintf("cycle through %s", cur))
		}
		seen[cur] = struct{}{}
		path = append(path, cur)

		var u models.UnifiedUser
		err := tx.Select("id", "merged_into").Where("id = ?", cur).Take(&u).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if hops == 0 {
					return nil, ErrUserNotFound
				}
				return nil, r.corrupt(id, fmt.Sprintf("dangling forward to %s", cur))
			}
			return nil, fmt.Errorf("failed to resolve unified user: %w", err)
		}
		if u.MergedInto == nil {
			return path, nil
		}
		cur = *u.MergedInto
	}
	return nil, r.corrupt(id, fmt.Sprintf("no root within %d hops", r.maxDepth))
}

// Members returns root and every account that forwards to it, directly or
// transitively.
func (r *UserRegistry) Members(ctx context.Context, root uuid.UUID) ([]uuid.UUID, error) {
	return r.members(r.db.WithContext(ctx), root)
}

func (r *UserRegistry) members(tx *gorm.DB, root uuid.UUID) ([]uuid.UUID, error) {
	all := []uuid.UUID{root}
	seen := map[uuid.UUID]struct{}{root: {}}
	frontier := []uuid.UUID{root}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth > r.maxDepth {
			return nil, r.corrupt(root, fmt.Sprintf("lineage deeper than %d", r.maxDepth))
		}
		var children []uuid.UUID
		if err := tx.Model(&models.UnifiedUser{}).
			Where("merged_into IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, fmt.Errorf("failed to list merged accounts: %w", err)
		}
		frontier = frontier[:0]
		for _, c := range children {
			if _, ok := seen[c]; ok {
				return nil, r.corrupt(root, fmt.Sprintf("cycle through %s", c))
			}
			seen[c] = struct{}{}
			all = append(all, c)
			frontier = append(frontier, c)
		}
	}
	return all, nil
}

// RegisterMerge makes source forward to target. Both must currently be
// distinct roots; otherwise a *StaleMergeError is returned and nothing changes.
func (r *UserRegistry) RegisterMerge(ctx context.Context, source, target uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.registerMerge(tx, source, target)
	})
}

func (r *UserRegistry) registerMerge(tx *gorm.DB, source, target uuid.UUID) error {
	if source == target {
		return ErrMergeSelf
	}

	tgt, err := r.get(tx, target)
	if err != nil {
		return err
	}
	if !tgt.IsRoot() {
		return r.stale(tx, source, target)
	}

	now := r.now()
	res := tx.Model(&models.UnifiedUser{}).
		Where("id = ? AND merged_into IS NULL", source).
		Updates(map[string]interface{}{
			"merged_into": target,
			"merged_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to register merge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.get(tx, source); err != nil {
			return err
		}
		return r.stale(tx, source, target)
	}
	return nil
}

// compress re-points every account of lineage that forwards to from so that
// it forwards straight to to. from itself is left alone.
func (r *UserRegistry) compress(tx *gorm.DB, lineage []uuid.UUID, from, to uuid.UUID) error {
	others := make([]uuid.UUID, 0, len(lineage))
	for _, id := range lineage {
		if id != from {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil
	}
	err := tx.Model(&models.UnifiedUser{}).
		Where("id IN ? AND merged_into IS NOT NULL", others).
		Update("merged_into", to).Error
	if err != nil {
		return fmt.Errorf("failed to compress forwards: %w", err)
	}
	return nil
}

// lockRoot resolves id and takes a row lock on its root, re-resolving if the
// root was merged away before the lock was granted.
func (r *UserRegistry) lockRoot(tx *gorm.DB, id uuid.UUID) (*models.UnifiedUser, error) {
	for attempt := 0; attempt < 3; attempt++ {
		root, err := r.find(tx, id)
		if err != nil {
			return nil, err
		}
		u, err := r.lock(tx, root)
		if err != nil {
			return nil, err
		}
		if u.IsRoot() {
			return u, nil
		}
		id = root
	}
	return nil, fmt.Errorf("%w: root of %s kept moving", ErrStaleMerge, id)
}

func (r *UserRegistry) lock(tx *gorm.DB, id uuid.UUID) (*models.UnifiedUser, error) {
	var u models.UnifiedUser
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock unified user: %w", err)
	}
	return &u, nil
}

func (r *UserRegistry) stale(tx *gorm.DB, source, target uuid.UUID) error {
	e := &StaleMergeError{Source: source, Target: target}
	if root, err := r.find(tx, source); err == nil {
		e.SourceRoot = root
	} else if errors.Is(err, ErrCorruptState) {
		return err
	}
	if root, err := r.find(tx, target); err == nil {
		e.TargetRoot = root
	} else if errors.Is(err, ErrCorruptState) {
		return err
	}
	return e
}

func (r *UserRegistry) corrupt(start uuid.UUID, detail string) error {
	err := fmt.Errorf("%w: resolving %s: %s", ErrCorruptState, start, detail)
	r.log.Error("unified user forwarding chain is corrupt",
		"unified_user_id", start.String(),
		"action", "resolve",
		"error", err.Error(),
	)
	sentry.CaptureException(err)
	return err
}
