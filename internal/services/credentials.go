package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"golang.org/x/crypto/blake2b"
)

const apiKeyPrefix = "key_"

// Credential is a canonical (provider, provider_user_id) pair.
type Credential struct {
	Provider       models.Provider
	ProviderUserID string
}

// CredentialNormalizer canonicalizes raw credentials before they touch the
// identities table. AI provider keys are never stored; only a keyed
// fingerprint of them is.
type CredentialNormalizer struct {
	key []byte
}

func NewCredentialNormalizer(secret string) *CredentialNormalizer {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := sha256.Sum256(key)
		key = sum[:]
	}
	return &CredentialNormalizer{key: key}
}

func (n *CredentialNormalizer) Normalize(provider, providerUserID string) (Credential, error) {
	p, err := models.ParseProvider(provider)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %s", ErrInvalidProvider, provider)
	}

	id := p.Spec().Normalize(providerUserID)
	if id == "" {
		return Credential{}, ErrInvalidCredential
	}

	if p.Kind() == models.KindAIKey && !strings.HasPrefix(id, apiKeyPrefix) {
		id, err = n.fingerprint(p, id)
		if err != nil {
			return Credential{}, err
		}
	}
	return Credential{Provider: p, ProviderUserID: id}, nil
}

func (n *CredentialNormalizer) fingerprint(p models.Provider, key string) (string, error) {
	h, err := blake2b.New256(n.key)
	if err != nil {
		return "", fmt.Errorf("failed to init fingerprint hash: %w", err)
	}
	h.Write([]byte(p))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return apiKeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// DisplayHandle returns handle, or one derived from the credential.
func DisplayHandle(c Credential, handle string) string {
	if h := strings.TrimSpace(handle); h != "" {
		return h
	}
	return c.Provider.Spec().Display(c.ProviderUserID)
}
