package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newUsers(t *testing.T, r *UserRegistry, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		u := models.UnifiedUser{DisplayName: "user"}
		require.NoError(t, r.Create(context.Background(), &u))
		ids[i] = u.ID
	}
	return ids
}

func TestFindFollowsForwards(t *testing.T) {
	ctx := context.Background()
	r := NewUserRegistry(testutil.TempDB(t), 0, quietLogger())
	ids := newUsers(t, r, 3)

	require.NoError(t, r.RegisterMerge(ctx, ids[0], ids[1]))
	require.NoError(t, r.RegisterMerge(ctx, ids[1], ids[2]))

	root, err := r.Find(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, ids[2], root)

	chain, err := r.Chain(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, ids, chain)

	members, err := r.Members(ctx, ids[2])
	require.NoError(t, err)
	require.ElementsMatch(t, ids, members)
}

func TestFindUnknownUser(t *testing.T) {
	r := NewUserRegistry(testutil.TempDB(t), 0, quietLogger())
	_, err := r.Find(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegisterMergeRequiresRoots(t *testing.T) {
	ctx := context.Background()
	r := NewUserRegistry(testutil.TempDB(t), 0, quietLogger())
	ids := newUsers(t, r, 3)

	require.ErrorIs(t, r.RegisterMerge(ctx, ids[0], ids[0]), ErrMergeSelf)
	require.NoError(t, r.RegisterMerge(ctx, ids[0], ids[1]))

	err := r.RegisterMerge(ctx, ids[0], ids[2])
	require.ErrorIs(t, err, ErrStaleMerge)
	var stale *StaleMergeError
	require.True(t, errors.As(err, &stale))
	require.Equal(t, ids[1], stale.SourceRoot)
	require.Equal(t, ids[2], stale.TargetRoot)
	require.False(t, stale.AlreadyCombined())

	err = r.RegisterMerge(ctx, ids[2], ids[0])
	require.ErrorIs(t, err, ErrStaleMerge)

	root, err := r.Find(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, ids[1], root)
}

func TestFindDetectsCycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.TempDB(t)
	r := NewUserRegistry(db, 0, quietLogger())
	ids := newUsers(t, r, 2)

	require.NoError(t, db.Model(&models.UnifiedUser{}).Where("id = ?", ids[0]).Update("merged_into", ids[1]).Error)
	require.NoError(t, db.Model(&models.UnifiedUser{}).Where("id = ?", ids[1]).Update("merged_into", ids[0]).Error)

	_, err := r.Find(ctx, ids[0])
	require.ErrorIs(t, err, ErrCorruptState)
}

func TestFindDepthBound(t *testing.T) {
	ctx := context.Background()
	r := NewUserRegistry(testutil.TempDB(t), 2, quietLogger())
	ids := newUsers(t, r, 4)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RegisterMerge(ctx, ids[i], ids[i+1]))
	}

	root, err := r.Find(ctx, ids[1])
	require.NoError(t, err)
	require.Equal(t, ids[3], root)

	_, err = r.Find(ctx, ids[0])
	require.ErrorIs(t, err, ErrCorruptState)
}

func TestRandomMergeForestTerminates(t *testing.T) {
	ctx := context.Background()
	r := NewUserRegistry(testutil.TempDB(t), 0, quietLogger())
	ids := newUsers(t, r, 30)
	rng := rand.New(rand.NewSource(42))

	merges := 0
	for i := 0; i < 80; i++ {
		a, err := r.Find(ctx, ids[rng.Intn(len(ids))])
		require.NoError(t, err)
		b, err := r.Find(ctx, ids[rng.Intn(len(ids))])
		require.NoError(t, err)
		if a == b {
			continue
		}
		require.NoError(t, r.RegisterMerge(ctx, a, b))
		merges++
	}
	require.Greater(t, merges, 0)

	roots := map[uuid.UUID]int{}
	for _, id := range ids {
		root, err := r.Find(ctx, id)
		require.NoError(t, err)
		again, err := r.Find(ctx, root)
		require.NoError(t, err)
		require.Equal(t, root, again)
		roots[root]++
	}
	require.Equal(t, len(ids)-merges, len(roots))

	total := 0
	for root := range roots {
		members, err := r.Members(ctx, root)
		require.NoError(t, err)
		total += len(members)
	}
	require.Equal(t, len(ids), total)
}
