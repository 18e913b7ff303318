package services

import (
	"context"
	"strings"
	"testing"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLinkIsIdempotent(t *testing.T) {
	e, db := newTestEngine(t)
	x := signUp(t, e, "google", "g-1")

	first := link(t, e, x, "github", "octo")
	require.Equal(t, StatusLinked, first.Status)
	require.Equal(t, x, first.Identity.UnifiedUserID)
	require.Equal(t, "octo", first.Identity.ProviderHandle)

	second := link(t, e, x, "github", "  octo ")
	require.Equal(t, StatusAlreadyLinked, second.Status)
	require.Equal(t, first.Identity.ID, second.Identity.ID)
	require.Equal(t, int64(2), testutil.CountRows(t, db, &models.Identity{}))
}

func TestLinkConflictDoesNotMoveCredential(t *testing.T) {
	e, db := newTestEngine(t)
	x := signUp(t, e, "google", "g-1")
	y := signUp(t, e, "twitter", "t-1")
	before := identityOwners(t, db)

	res := link(t, e, x, "twitter", "t-1")
	require.Equal(t, StatusConflict, res.Status)
	require.Equal(t, y, res.OwnerRoot)
	require.Equal(t, x, res.CallerRoot)

	require.Equal(t, before, identityOwners(t, db))
	require.Equal(t, int64(2), testutil.CountRows(t, db, &models.UnifiedUser{}))
}

func TestLinkNormalizesCredentials(t *testing.T) {
	e, _ := newTestEngine(t)
	x := signUp(t, e, "metamask", "0xAbCdEf0123456789aBcDeF0123456789abcdef01")

	res := link(t, e, x, "MetaMask", "0xabcdef0123456789abcdef0123456789ABCDEF01")
	require.Equal(t, StatusAlreadyLinked, res.Status)
	require.Equal(t, "0xabcd...ef01", res.Identity.ProviderHandle)

	res = link(t, e, x, "handcash", "$Satoshi")
	require.Equal(t, StatusLinked, res.Status)
	require.Equal(t, "satoshi", res.Identity.ProviderUserID)
	require.Equal(t, "$satoshi", res.Identity.ProviderHandle)
}

func TestLinkStoresOnlyKeyFingerprint(t *testing.T) {
	e, _ := newTestEngine(t)
	x := signUp(t, e, "google", "g-1")

	res := link(t, e, x, "anthropic", "sk-ant-secret-value")
	require.Equal(t, StatusLinked, res.Status)
	require.True(t, strings.HasPrefix(res.Identity.ProviderUserID, "key_"))
	require.NotContains(t, res.Identity.ProviderUserID, "secret")

	again := link(t, e, x, "anthropic", "sk-ant-secret-value")
	require.Equal(t, StatusAlreadyLinked, again.Status)

	other := link(t, e, x, "openai", "sk-ant-secret-value")
	require.Equal(t, StatusLinked, other.Status)
	require.NotEqual(t, res.Identity.ProviderUserID, other.Identity.ProviderUserID)
}

func TestLinkRejectsBadInput(t *testing.T) {
	e, _ := newTestEngine(t)
	x := signUp(t, e, "google", "g-1")
	ctx := context.Background()

	_, err := e.Identities.Link(ctx, x, LinkInput{Provider: "myspace", ProviderUserID: "1"})
	require.ErrorIs(t, err, ErrInvalidProvider)

	_, err = e.Identities.Link(ctx, x, LinkInput{Provider: "github", ProviderUserID: "  "})
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = e.Identities.Link(ctx, uuid.New(), LinkInput{Provider: "github", ProviderUserID: "octo"})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestLinkThroughMergedAccount(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-1")
	y := signUp(t, e, "twitter", "t-1")
	_, err := e.Merges.ConfirmMerge(ctx, MergeRequest{Source: y, Target: x, Confirmed: true})
	require.NoError(t, err)

	res := link(t, e, y, "github", "octo")
	require.Equal(t, StatusLinked, res.Status)
	require.Equal(t, x, res.Identity.UnifiedUserID)
}

func TestUnlinkLastIdentity(t *testing.T) {
	e, db := newTestEngine(t)
	z := signUp(t, e, "google", "g-1")
	idents, err := e.Identities.ListByRoot(context.Background(), z)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	before := identityOwners(t, db)

	err = e.Identities.Unlink(context.Background(), idents[0].ID, z)
	require.ErrorIs(t, err, ErrLastIdentity)
	require.Equal(t, before, identityOwners(t, db))
}

func TestUnlinkRequiresOwnership(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-1")
	y := signUp(t, e, "twitter", "t-1")
	gh := link(t, e, x, "github", "octo")

	err := e.Identities.Unlink(ctx, gh.Identity.ID, y)
	require.ErrorIs(t, err, ErrForbidden)

	err = e.Identities.Unlink(ctx, uuid.New(), x)
	require.ErrorIs(t, err, ErrIdentityNotFound)

	require.NoError(t, e.Identities.Unlink(ctx, gh.Identity.ID, x))
	require.Equal(t, int64(2), testutil.CountRows(t, db, &models.Identity{}))

	n, err := e.Identities.CountByRoot(ctx, x)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestUnlinkWithMergedAccountID(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-1")
	y := signUp(t, e, "twitter", "t-1")
	_, err := e.Merges.ConfirmMerge(ctx, MergeRequest{Source: y, Target: x, Confirmed: true})
	require.NoError(t, err)

	idents, err := e.Identities.ListByRoot(ctx, x)
	require.NoError(t, err)
	require.Len(t, idents, 2)

	require.NoError(t, e.Identities.Unlink(ctx, idents[1].ID, y), "a merged-away id acts for its root")

	n, err := e.Identities.CountByRoot(ctx, x)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
