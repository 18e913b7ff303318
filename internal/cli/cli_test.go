package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) *services.Engine {
	t.Helper()
	db := testutil.TempDB(t)
	kinds := testutil.Resources()
	cfg := &config.Config{
		JWTSecret:               "test-jwt-secret",
		JWTAccessExpiry:         15 * time.Minute,
		JWTRefreshExpiry:        time.Hour,
		MergeTokenSecret:        "test-merge-secret",
		MergeTokenTTL:           15 * time.Minute,
		MergeTokenIssuer:        "unified-identity",
		MaxResolveDepth:         services.DefaultMaxResolveDepth,
		APIKeyFingerprintSecret: "test-fingerprint-secret",
	}
	engine := services.NewEngine(db, cfg, kinds, slog.New(slog.NewTextHandler(io.Discard, nil)))

	prev := openRuntime
	openRuntime = func(*cobra.Command) (*runtime, error) {
		return &runtime{db: db, kinds: kinds, engine: engine, close: func() {}}, nil
	}
	t.Cleanup(func() {
		openRuntime = prev
		resolveJSON, mergeSource, mergeTarget, mergeYes = false, "", "", false
	})
	return engine
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func signUp(t *testing.T, e *services.Engine, provider, providerUserID string) uuid.UUID {
	t.Helper()
	resp, err := e.Auth.Authenticate(context.Background(), &dto.LoginRequest{
		Provider:       provider,
		ProviderUserID: providerUserID,
		DisplayName:    providerUserID,
	})
	require.NoError(t, err)
	return resp.User.ID
}

func TestMigrateIsIdempotent(t *testing.T) {
	setupCLI(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "migrated")

	_, err = run(t, "migrate")
	require.NoError(t, err)
}

func TestMergePreviewThenApply(t *testing.T) {
	e := setupCLI(t)
	a := signUp(t, e, "google", "alice")
	b := signUp(t, e, "github", "alice-gh")

	out, err := run(t, "merge", "--source", b.String(), "--target", a.String())
	require.NoError(t, err)
	require.Contains(t, out, "re-run with --yes")

	root, err := e.Registry.Find(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, b, root, "preview must not merge")

	out, err = run(t, "merge", "--source", b.String(), "--target", a.String(), "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "merged "+b.String()+" into "+a.String())

	out, err = run(t, "merge", "--source", b.String(), "--target", a.String(), "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "already merged")

	out, err = run(t, "resolve", b.String())
	require.NoError(t, err)
	require.Contains(t, out, b.String()+" -> "+a.String())
	require.Contains(t, out, "root: "+a.String())

	out, err = run(t, "owner", "github", "alice-gh")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, a.String()))
}

func TestResolveJSON(t *testing.T) {
	e := setupCLI(t)
	a := signUp(t, e, "google", "bob")

	out, err := run(t, "resolve", "--json", a.String())
	require.NoError(t, err)

	var got struct {
		Chain []uuid.UUID `json:"chain"`
		Root  uuid.UUID   `json:"root"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, []uuid.UUID{a}, got.Chain)
	require.Equal(t, a, got.Root)
}

func TestResolveErrors(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "resolve", "not-a-uuid")
	require.Error(t, err)

	_, err = run(t, "resolve", uuid.NewString())
	require.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestSweepTokens(t *testing.T) {
	setupCLI(t)

	out, err := run(t, "sweep-tokens")
	require.NoError(t, err)
	require.Equal(t, "deleted 0 merge tokens\n", out)
}
