package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTokenService(t *testing.T) (*MergeTokenService, *fakeClock, *gorm.DB) {
	t.Helper()
	db := testutil.TempDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewMergeTokenService(db, MergeTokenConfig{
		Secret: []byte("merge-secret"),
		Issuer: "unified-identity",
		TTL:    10 * time.Minute,
		Now:    clock.Now,
	}, quietLogger())
	return svc, clock, db
}

func TestMergeTokenRoundTrip(t *testing.T) {
	svc, _, _ := newTokenService(t)
	ctx := context.Background()
	src, tgt := uuid.New(), uuid.New()

	issued, err := svc.Issue(ctx, src, tgt, 0)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), issued.ExpiresAt)

	intent, err := svc.Verify(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, issued.TokenID, intent.TokenID)
	require.Equal(t, src, intent.Source)
	require.Equal(t, tgt, intent.Target)
}

func TestMergeTokenRejectsTampering(t *testing.T) {
	svc, clock, db := newTokenService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)

	parts := strings.Split(issued.Token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = svc.Verify(ctx, forged)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Verify(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Verify(ctx, "")
	require.ErrorIs(t, err, ErrTokenInvalid)

	other := NewMergeTokenService(db, MergeTokenConfig{Secret: []byte("other-secret"), Issuer: "unified-identity", Now: clock.Now}, quietLogger())
	_, err = other.Verify(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenInvalid)

	wrongIssuer := NewMergeTokenService(db, MergeTokenConfig{Secret: []byte("merge-secret"), Issuer: "someone-else", Now: clock.Now}, quietLogger())
	_, err = wrongIssuer.Verify(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMergeTokenUnknownRecord(t *testing.T) {
	svc, _, db := newTokenService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)
	require.NoError(t, db.Where("token_id = ?", issued.TokenID).Delete(&models.MergeToken{}).Error)

	_, err = svc.Verify(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMergeTokenExpires(t *testing.T) {
	svc, clock, _ := newTokenService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(59 * time.Second)
	_, err = svc.Verify(ctx, issued.Token)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Second)
	_, err = svc.Verify(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestMergeTokenSingleUse(t *testing.T) {
	svc, clock, db := newTokenService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, uuid.New(), uuid.New(), 0)
	require.NoError(t, err)

	require.NoError(t, svc.Consume(db, issued.TokenID))
	require.ErrorIs(t, svc.Consume(db, issued.TokenID), ErrTokenConsumed)
	require.ErrorIs(t, svc.Consume(db, uuid.New()), ErrTokenInvalid)

	intent, err := svc.Verify(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenConsumed)
	require.NotNil(t, intent)
	require.Equal(t, issued.TokenID, intent.TokenID)

	clock.now = clock.now.Add(time.Hour)
	_, err = svc.Verify(ctx, issued.Token)
	require.ErrorIs(t, err, ErrTokenConsumed, "consumption is reported before expiry")
}

func TestMergeTokenExpiresBeforeRedemption(t *testing.T) {
	svc, clock, db := newTokenService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(59 * time.Second)
	_, err = svc.Verify(ctx, issued.Token)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Second)
	require.ErrorIs(t, svc.Consume(db, issued.TokenID), ErrTokenExpired)

	var row models.MergeToken
	require.NoError(t, db.Where("token_id = ?", issued.TokenID).Take(&row).Error)
	require.False(t, row.Consumed)
}

func TestMergeTokenSweep(t *testing.T) {
	svc, clock, db := newTokenService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, uuid.New(), uuid.New(), 48*time.Hour)
	require.NoError(t, err)
	redeemed, err := svc.Issue(ctx, uuid.New(), uuid.New(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.Consume(db, redeemed.TokenID))

	clock.now = clock.now.Add(2 * time.Hour)
	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, int64(2), testutil.CountRows(t, db, &models.MergeToken{}))

	_, err = svc.Verify(ctx, redeemed.Token)
	require.ErrorIs(t, err, ErrTokenConsumed)
}

func TestMergeTokenRejectsSelfMerge(t *testing.T) {
	svc, _, _ := newTokenService(t)
	id := uuid.New()
	_, err := svc.Issue(context.Background(), id, id, 0)
	require.ErrorIs(t, err, ErrMergeSelf)
}
