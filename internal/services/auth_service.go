package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/config"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/dto"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthService turns gateway-verified credentials into sessions. Session
// subjects are always the root account at the time of issue.
type AuthService struct {
	db         *gorm.DB
	cfg        *config.Config
	registry   *UserRegistry
	identities *IdentityStore
	log        *slog.Logger
}

func NewAuthService(db *gorm.DB, cfg *config.Config, registry *UserRegistry, identities *IdentityStore, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{db: db, cfg: cfg, registry: registry, identities: identities, log: log}
}

// Authenticate signs in with a credential, creating a fresh account the first
// time the credential is seen.
func (s *AuthService) Authenticate(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	cred, err := s.identities.Normalize(req.Provider, req.ProviderUserID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.identities.lookup(db, cred)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			root, err := s.registry.Resolve(ctx, existing.UnifiedUserID)
			if err != nil {
				return nil, err
			}
			return s.generateTokenPair(ctx, root, false)
		}

		user, err := s.signUp(db, cred, req)
		if errors.Is(err, errLinkRace) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("unified user created",
			"unified_user_id", user.ID.String(),
			"action", "sign_up",
			"provider", string(cred.Provider),
		)
		return s.generateTokenPair(ctx, user, true)
	}
	return nil, fmt.Errorf("failed to authenticate: %w", errLinkRace)
}

func (s *AuthService) signUp(db *gorm.DB, cred Credential, req *dto.LoginRequest) (*models.UnifiedUser, error) {
	handle := DisplayHandle(cred, req.ProviderHandle)
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = handle
	}
	data, err := jsonColumn(req.ProviderData)
	if err != nil {
		return nil, err
	}

	user := models.UnifiedUser{
		DisplayName:  displayName,
		PrimaryEmail: optionalString(req.ProviderEmail),
		AvatarURL:    strings.TrimSpace(req.AvatarURL),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.registry.create(tx, &user); err != nil {
			return err
		}
		ident := models.Identity{
			UnifiedUserID:  user.ID,
			Provider:       cred.Provider,
			ProviderUserID: cred.ProviderUserID,
			ProviderHandle: handle,
			ProviderEmail:  optionalString(req.ProviderEmail),
			ProviderData:   data,
		}
		if err := tx.Create(&ident).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errLinkRace
			}
			return fmt.Errorf("failed to create identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) Refresh(ctx context.Context, req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	db := s.db.WithContext(ctx)
	tokenHash := hashToken(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidRefresh
	}

	if time.Now().After(stored.ExpiresAt) {
		db.Model(&stored).Update("revoked", true)
		return nil, ErrInvalidRefresh
	}

	res := db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", stored.ID, false).
		Update("revoked", true)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidRefresh
	}

	root, err := s.registry.Resolve(ctx, stored.UnifiedUserID)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, root, false)
}

func (s *AuthService) Logout(ctx context.Context, req *dto.LogoutRequest) error {
	tokenHash := hashToken(req.RefreshToken)
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// SessionSubject validates an access token and returns its subject, which may
// be an account that has since been merged away.
func (s *AuthService) SessionSubject(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnauthenticated
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *models.UnifiedUser, created bool) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Created:      created,
		User:         toUserResponse(user, nil),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.UnifiedUser) (string, error) {
	claims := jwt.MapClaims{
		"sub":          user.ID.String(),
		"display_name": user.DisplayName,
		"iat":          time.Now().Unix(),
		"exp":          time.Now().Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.UnifiedUser) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)
	tokenHash := hashToken(rawToken)

	record := models.RefreshToken{
		UnifiedUserID: user.ID,
		TokenHash:     tokenHash,
		ExpiresAt:     time.Now().Add(s.cfg.JWTRefreshExpiry),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

func toUserResponse(u *models.UnifiedUser, idents []models.Identity) dto.UnifiedUserResponse {
	resp := dto.UnifiedUserResponse{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		PrimaryEmail: u.PrimaryEmail,
		AvatarURL:    u.AvatarURL,
		Flags:        json.RawMessage(u.Flags),
		CreatedAt:    u.CreatedAt,
	}
	for i := range idents {
		resp.Identities = append(resp.Identities, toIdentityResponse(&idents[i]))
	}
	return resp
}

func toIdentityResponse(i *models.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:             i.ID,
		Provider:       string(i.Provider),
		ProviderUserID: i.ProviderUserID,
		ProviderHandle: i.ProviderHandle,
		ProviderEmail:  i.ProviderEmail,
		LinkedAt:       i.LinkedAt,
	}
}
