package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LoginRequest carries a credential the gateway has already verified with
// its provider.
type LoginRequest struct {
	Provider       string                 `json:"provider"`
	ProviderUserID string                 `json:"provider_user_id"`
	ProviderHandle string                 `json:"provider_handle,omitempty"`
	ProviderEmail  string                 `json:"provider_email,omitempty"`
	ProviderData   map[string]interface{} `json:"provider_data,omitempty"`
	DisplayName    string                 `json:"display_name,omitempty"`
	AvatarURL      string                 `json:"avatar_url,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	Created      bool                `json:"created"`
	User         UnifiedUserResponse `json:"user"`
}

type UnifiedUserResponse struct {
	ID           uuid.UUID          `json:"id"`
	DisplayName  string             `json:"display_name"`
	PrimaryEmail *string            `json:"primary_email"`
	AvatarURL    string             `json:"avatar_url"`
	Flags        json.RawMessage    `json:"flags,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	Identities   []IdentityResponse `json:"identities,omitempty"`
}

type IdentityResponse struct {
	ID             uuid.UUID `json:"id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	ProviderHandle string    `json:"provider_handle"`
	ProviderEmail  *string   `json:"provider_email,omitempty"`
	LinkedAt       time.Time `json:"linked_at"`
}

type UpdateProfileRequest struct {
	DisplayName  *string                `json:"display_name,omitempty"`
	PrimaryEmail *string                `json:"primary_email,omitempty"`
	AvatarURL    *string                `json:"avatar_url,omitempty"`
	Flags        map[string]interface{} `json:"flags,omitempty"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
