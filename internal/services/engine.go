package services

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/resources"
	"gorm.io/gorm"
)

// Engine wires the identity services over one database.
type Engine struct {
	Registry   *UserRegistry
	Identities *IdentityStore
	Detector   *ConflictDetector
	Tokens     *MergeTokenService
	Merges     *MergeOrchestrator
	Accounts   *AccountService
	Auth       *AuthService
}

func NewEngine(db *gorm.DB, cfg *config.Config, res *resources.Registry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	registry := NewUserRegistry(db, cfg.MaxResolveDepth, log)
	identities := NewIdentityStore(db, registry, NewCredentialNormalizer(cfg.APIKeyFingerprintSecret), log)
	detector := NewConflictDetector(db, registry, identities, res)
	tokens := NewMergeTokenService(db, MergeTokenConfig{
		Secret: []byte(cfg.MergeTokenSecret),
		Issuer: cfg.MergeTokenIssuer,
		TTL:    cfg.MergeTokenTTL,
	}, log)
	merges := NewMergeOrchestrator(db, registry, tokens, detector, res, log)

	return &Engine{
		Registry:   registry,
		Identities: identities,
		Detector:   detector,
		Tokens:     tokens,
		Merges:     merges,
		Accounts:   NewAccountService(db, registry, identities, detector, tokens, merges),
		Auth:       NewAuthService(db, cfg, registry, identities, log),
	}
}
