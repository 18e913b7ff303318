package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Provider identifies the external source of a credential.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderTwitter  Provider = "twitter"
	ProviderDiscord  Provider = "discord"
	ProviderLinkedIn Provider = "linkedin"
	ProviderSupabase Provider = "supabase"

	ProviderMetaMask Provider = "metamask"
	ProviderPhantom  Provider = "phantom"
	ProviderYours    Provider = "yours"

	ProviderHandCash Provider = "handcash"

	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// ProviderKind groups providers that share credential semantics.
type ProviderKind string

const (
	KindSocial  ProviderKind = "social"
	KindWallet  ProviderKind = "wallet"
	KindHandle  ProviderKind = "handle"
	KindAIKey   ProviderKind = "ai_key"
	kindUnknown ProviderKind = ""
)

// ProviderSpec describes how credentials of one provider are compared and shown.
type ProviderSpec struct {
	Kind ProviderKind
	// Normalize canonicalizes the external user id so that equal credentials
	// always collide on the unique (provider, provider_user_id) index.
	Normalize func(raw string) string
	// Display derives a display handle when the caller does not supply one.
	Display func(providerUserID string) string
}

var providerSpecs = map[Provider]ProviderSpec{
	ProviderGoogle:   {Kind: KindSocial, Normalize: strings.TrimSpace, Display: plain},
	ProviderGitHub:   {Kind: KindSocial, Normalize: strings.TrimSpace, Display: plain},
	ProviderTwitter:  {Kind: KindSocial, Normalize: strings.TrimSpace, Display: plain},
	ProviderDiscord:  {Kind: KindSocial, Normalize: strings.TrimSpace, Display: plain},
	ProviderLinkedIn: {Kind: KindSocial, Normalize: strings.TrimSpace, Display: plain},
	ProviderSupabase: {Kind: KindSocial, Normalize: strings.TrimSpace, Display: plain},

	ProviderMetaMask: {Kind: KindWallet, Normalize: lowerTrim, Display: shortEVM},
	ProviderPhantom:  {Kind: KindWallet, Normalize: strings.TrimSpace, Display: shortAddress},
	ProviderYours:    {Kind: KindWallet, Normalize: strings.TrimSpace, Display: shortAddress},

	ProviderHandCash: {Kind: KindHandle, Normalize: handCashHandle, Display: dollarHandle},

	ProviderAnthropic: {Kind: KindAIKey, Normalize: strings.TrimSpace, Display: keyLabel},
	ProviderOpenAI:    {Kind: KindAIKey, Normalize: strings.TrimSpace, Display: keyLabel},
	ProviderGemini:    {Kind: KindAIKey, Normalize: strings.TrimSpace, Display: keyLabel},
}

// ParseProvider validates a provider name against the closed catalogue.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := providerSpecs[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// Spec returns the catalogue entry for p. The zero spec is returned for
// unknown providers.
func (p Provider) Spec() ProviderSpec {
	return providerSpecs[p]
}

func (p Provider) Kind() ProviderKind {
	if spec, ok := providerSpecs[p]; ok {
		return spec.Kind
	}
	return kindUnknown
}

func (p Provider) Valid() bool {
	_, ok := providerSpecs[p]
	return ok
}

// Providers lists every supported provider.
func Providers() []Provider {
	out := make([]Provider, 0, len(providerSpecs))
	for p := range providerSpecs {
		out = append(out, p)
	}
	return out
}

func (p Provider) Value() (driver.Value, error) {
	return string(p), nil
}

func (p *Provider) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*p = Provider(v)
	case []byte:
		*p = Provider(v)
	case nil:
		*p = ""
	default:
		return fmt.Errorf("cannot scan %T into Provider", value)
	}
	return nil
}

func plain(s string) string { return s }

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func handCashHandle(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "$"))
}

func dollarHandle(s string) string { return "$" + s }

func shortEVM(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func shortAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

func keyLabel(fingerprint string) string {
	if len(fingerprint) <= 12 {
		return "API key"
	}
	return "API key " + fingerprint[len(fingerprint)-8:]
}
