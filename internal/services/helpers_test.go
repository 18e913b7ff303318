package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:               "test-jwt-secret",
		JWTAccessExpiry:         15 * time.Minute,
		JWTRefreshExpiry:        time.Hour,
		MergeTokenSecret:        "test-merge-secret",
		MergeTokenTTL:           15 * time.Minute,
		MergeTokenIssuer:        "unified-identity",
		MaxResolveDepth:         DefaultMaxResolveDepth,
		APIKeyFingerprintSecret: "test-fingerprint-secret",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db := testutil.TempDB(t)
	return NewEngine(db, testConfig(), testutil.Resources(), quietLogger()), db
}

// signUp creates an account through a first login and returns its id.
func signUp(t *testing.T, e *Engine, provider, providerUserID string) uuid.UUID {
	t.Helper()
	resp, err := e.Auth.Authenticate(context.Background(), &dto.LoginRequest{
		Provider:       provider,
		ProviderUserID: providerUserID,
	})
	require.NoError(t, err)
	require.True(t, resp.Created)
	return resp.User.ID
}

func link(t *testing.T, e *Engine, owner uuid.UUID, provider, providerUserID string) *LinkResult {
	t.Helper()
	res, err := e.Identities.Link(context.Background(), owner, LinkInput{Provider: provider, ProviderUserID: providerUserID})
	require.NoError(t, err)
	return res
}

func identityOwners(t *testing.T, db *gorm.DB) map[string]uuid.UUID {
	t.Helper()
	var rows []struct {
		Provider       string
		ProviderUserID string
		UnifiedUserID  uuid.UUID
	}
	require.NoError(t, db.Table("identities").Select("provider, provider_user_id, unified_user_id").Scan(&rows).Error)
	out := make(map[string]uuid.UUID, len(rows))
	for _, r := range rows {
		out[r.Provider+":"+r.ProviderUserID] = r.UnifiedUserID
	}
	return out
}

func countRoots(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.UnifiedUser{}).Where("merged_into IS NULL").Count(&n).Error)
	return n
}
