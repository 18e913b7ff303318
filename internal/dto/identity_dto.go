package dto

import "github.com/google/uuid"

type LinkIdentityRequest struct {
	Provider       string                 `json:"provider"`
	ProviderUserID string                 `json:"provider_user_id"`
	ProviderHandle string                 `json:"provider_handle,omitempty"`
	ProviderEmail  string                 `json:"provider_email,omitempty"`
	ProviderData   map[string]interface{} `json:"provider_data,omitempty"`
}

// MergeAccountsRequest redeems a merge token. Confirmed=false only previews.
type MergeAccountsRequest struct {
	MergeToken string `json:"merge_token"`
	Confirmed  bool   `json:"confirmed"`
}

// AdminMergeRequest merges two named accounts without a token.
type AdminMergeRequest struct {
	SourceUnifiedUserID uuid.UUID `json:"source_unified_user_id"`
	TargetUnifiedUserID uuid.UUID `json:"target_unified_user_id"`
	Confirmed           bool      `json:"confirmed"`
}
