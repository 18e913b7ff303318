package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MERGE_TOKEN_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	require.Equal(t, 15*time.Minute, cfg.MergeTokenTTL)
	require.Equal(t, 64, cfg.MaxResolveDepth)
	require.Equal(t, "s3cret", cfg.MergeTokenSecret, "merge token secret falls back to JWT secret")
	require.Equal(t, "s3cret", cfg.APIKeyFingerprintSecret)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("MERGE_TOKEN_SECRET", "b")
	t.Setenv("MERGE_TOKEN_TTL", "2m")
	t.Setenv("MAX_RESOLVE_DEPTH", "8")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "b", cfg.MergeTokenSecret)
	require.Equal(t, 2*time.Minute, cfg.MergeTokenTTL)
	require.Equal(t, 8, cfg.MaxResolveDepth)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("MERGE_TOKEN_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg = &Config{JWTSecret: "x", DBPassword: "y", GatewayToken: "z"}
	require.NoError(t, cfg.Validate())
}
