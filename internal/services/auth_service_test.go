package services

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateCreatesThenResolves(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Auth.Authenticate(ctx, &dto.LoginRequest{
		Provider:       "github",
		ProviderUserID: "octo",
		ProviderEmail:  "octo@example.com",
		DisplayName:    "Octo Cat",
	})
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, "Octo Cat", first.User.DisplayName)
	require.NotNil(t, first.User.PrimaryEmail)
	require.NotEmpty(t, first.AccessToken)
	require.NotEmpty(t, first.RefreshToken)

	second, err := e.Auth.Authenticate(ctx, &dto.LoginRequest{Provider: "github", ProviderUserID: "octo"})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.User.ID, second.User.ID)

	require.Equal(t, int64(1), testutil.CountRows(t, db, &models.UnifiedUser{}))
	require.Equal(t, int64(1), testutil.CountRows(t, db, &models.Identity{}))
}

func TestAuthenticateAfterMergeIssuesSurvivor(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-x")
	y := signUp(t, e, "twitter", "t-y")
	_, err := e.Merges.ConfirmMerge(ctx, MergeRequest{Source: y, Target: x, Confirmed: true})
	require.NoError(t, err)

	resp, err := e.Auth.Authenticate(ctx, &dto.LoginRequest{Provider: "twitter", ProviderUserID: "t-y"})
	require.NoError(t, err)
	require.Equal(t, x, resp.User.ID)

	sub, err := e.Auth.SessionSubject(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, x, sub)
}

func TestRefreshFollowsMerge(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-x")

	yLogin, err := e.Auth.Authenticate(ctx, &dto.LoginRequest{Provider: "twitter", ProviderUserID: "t-y"})
	require.NoError(t, err)
	y := yLogin.User.ID

	_, err = e.Merges.ConfirmMerge(ctx, MergeRequest{Source: y, Target: x, Confirmed: true})
	require.NoError(t, err)

	refreshed, err := e.Auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: yLogin.RefreshToken})
	require.NoError(t, err)
	require.Equal(t, x, refreshed.User.ID)

	_, err = e.Auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: yLogin.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidRefresh, "refresh tokens rotate")

	require.NoError(t, e.Auth.Logout(ctx, &dto.LogoutRequest{RefreshToken: refreshed.RefreshToken}))
	_, err = e.Auth.Refresh(ctx, &dto.RefreshRequest{RefreshToken: refreshed.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestSessionSubjectRejectsBadTokens(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Auth.SessionSubject("")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = e.Auth.SessionSubject("garbage")
	require.ErrorIs(t, err, ErrUnauthenticated)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	raw, err := expired.SignedString([]byte(testConfig().JWTSecret))
	require.NoError(t, err)
	_, err = e.Auth.SessionSubject(raw)
	require.ErrorIs(t, err, ErrUnauthenticated)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	raw, err = foreign.SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = e.Auth.SessionSubject("Bearer " + raw)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUpdateProfileOnRoot(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-x")
	y := signUp(t, e, "twitter", "t-y")
	_, err := e.Merges.ConfirmMerge(ctx, MergeRequest{Source: y, Target: x, Confirmed: true})
	require.NoError(t, err)

	name := "  Renamed "
	email := "x@example.com"
	view, err := e.Accounts.UpdateProfile(ctx, y, &dto.UpdateProfileRequest{DisplayName: &name, PrimaryEmail: &email})
	require.NoError(t, err)
	require.Equal(t, x, view.ID)
	require.Equal(t, "Renamed", view.DisplayName)
	require.Equal(t, email, *view.PrimaryEmail)

	blank := " "
	_, err = e.Accounts.UpdateProfile(ctx, x, &dto.UpdateProfileRequest{DisplayName: &blank})
	require.Error(t, err)
}

func TestCheckIdentity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	x := signUp(t, e, "google", "g-x")
	y := signUp(t, e, "twitter", "t-y")

	check, err := e.Accounts.CheckIdentity(ctx, x, "github", "free")
	require.NoError(t, err)
	require.Equal(t, StatusNoConflict, check.Status)

	check, err = e.Accounts.CheckIdentity(ctx, x, "google", "g-x")
	require.NoError(t, err)
	require.Equal(t, StatusAlreadyLinked, check.Status)

	check, err = e.Accounts.CheckIdentity(ctx, x, "twitter", "t-y")
	require.NoError(t, err)
	require.Equal(t, StatusConflict, check.Status)
	require.Equal(t, y, check.OtherRoot)
}
