package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultMergeTokenTTL = 15 * time.Minute

// MergeTokenConfig defines how merge tokens are signed and verified.
type MergeTokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// IssuedMergeToken is a freshly signed merge authorization.
type IssuedMergeToken struct {
	Token     string    `json:"merge_token"`
	TokenID   uuid.UUID `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MergeIntent is the verified content of a merge token.
type MergeIntent struct {
	TokenID   uuid.UUID
	Source    uuid.UUID
	Target    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type mergeClaims struct {
	jwt.RegisteredClaims
	Source string `json:"src"`
	Target string `json:"tgt"`
	Nonce  string `json:"nonce"`
}

// MergeTokenService issues single-use, short-lived merge authorizations. The
// signed token carries the intent and a database row records redemption.
type MergeTokenService struct {
	db  *gorm.DB
	cfg MergeTokenConfig
	log *slog.Logger
}

func NewMergeTokenService(db *gorm.DB, cfg MergeTokenConfig, log *slog.Logger) *MergeTokenService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMergeTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &MergeTokenService{db: db, cfg: cfg, log: log}
}

// Issue signs a token authorizing the merge of source into target. A zero
// ttl uses the configured default.
func (s *MergeTokenService) Issue(ctx context.Context, source, target uuid.UUID, ttl time.Duration) (*IssuedMergeToken, error) {
	if len(s.cfg.Secret) == 0 {
		return nil, errors.New("merge token signer is not configured")
	}
	if source == target {
		return nil, ErrMergeSelf
	}
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	now := s.cfg.Now().UTC().Truncate(time.Second)
	row := models.MergeToken{
		TokenID:             uuid.New(),
		SourceUnifiedUserID: source,
		TargetUnifiedUserID: target,
		Nonce:               nonce,
		IssuedAt:            now,
		ExpiresAt:           now.Add(ttl),
	}

	claims := mergeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        row.TokenID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(row.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(row.ExpiresAt),
		},
		Source: source.String(),
		Target: target.String(),
		Nonce:  nonce,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign merge token: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to store merge token: %w", err)
	}

	s.log.Info("merge token issued",
		"unified_user_id", target.String(),
		"action", "merge_token_issue",
		"source_unified_user_id", source.String(),
		"token_id", row.TokenID.String(),
	)
	return &IssuedMergeToken{Token: signed, TokenID: row.TokenID, ExpiresAt: row.ExpiresAt}, nil
}

// Verify checks a token without redeeming it. A token that was already
// redeemed yields its intent together with ErrTokenConsumed.
func (s *MergeTokenService) Verify(ctx context.Context, token string) (*MergeIntent, error) {
	return s.verify(s.db.WithContext(ctx), token)
}

func (s *MergeTokenService) verify(tx *gorm.DB, token string) (*MergeIntent, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrTokenInvalid)
	}

	var parsed mergeClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if s.cfg.Issuer != "" && parsed.Issuer != s.cfg.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}

	tokenID, err := uuid.Parse(parsed.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad jti", ErrTokenInvalid)
	}
	source, err := uuid.Parse(parsed.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: bad source", ErrTokenInvalid)
	}
	target, err := uuid.Parse(parsed.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: bad target", ErrTokenInvalid)
	}

	var row models.MergeToken
	if err := tx.Where("token_id = ?", tokenID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown token", ErrTokenInvalid)
		}
		return nil, fmt.Errorf("failed to load merge token: %w", err)
	}
	if row.SourceUnifiedUserID != source || row.TargetUnifiedUserID != target || row.Nonce != parsed.Nonce {
		return nil, fmt.Errorf("%w: token does not match its record", ErrTokenInvalid)
	}

	intent := &MergeIntent{
		TokenID:   row.TokenID,
		Source:    row.SourceUnifiedUserID,
		Target:    row.TargetUnifiedUserID,
		IssuedAt:  row.IssuedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
	}
	if row.Consumed {
		return intent, ErrTokenConsumed
	}
	if !intent.ExpiresAt.After(s.cfg.Now().UTC()) {
		return nil, ErrTokenExpired
	}
	return intent, nil
}

// Consume redeems a token inside the caller's transaction. Exactly one
// concurrent caller succeeds; the rest get ErrTokenConsumed. A token that
// expired after it was verified is not redeemed.
func (s *MergeTokenService) Consume(tx *gorm.DB, tokenID uuid.UUID) error {
	now := s.cfg.Now().UTC()
	res := tx.Model(&models.MergeToken{}).
		Where("token_id = ? AND consumed = ? AND expires_at > ?", tokenID, false, now).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to consume merge token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var row models.MergeToken
		if err := tx.Select("token_id", "consumed").Where("token_id = ?", tokenID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("failed to load merge token: %w", err)
		}
		if row.Consumed {
			return ErrTokenConsumed
		}
		return ErrTokenExpired
	}
	return nil
}

// SweepExpired deletes unredeemed tokens past their expiry. Redeemed tokens
// are kept so that replays keep reporting the merge they authorized.
func (s *MergeTokenService) SweepExpired(ctx context.Context) (int64, error) {
	now := s.cfg.Now().UTC()
	res := s.db.WithContext(ctx).
		Where("consumed = ? AND expires_at < ?", false, now).
		Delete(&models.MergeToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep merge tokens: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("merge tokens swept", "action", "merge_token_sweep", "deleted", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature is invalid", ErrTokenInvalid)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: alg is invalid", ErrTokenInvalid)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: token is malformed", ErrTokenInvalid)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
