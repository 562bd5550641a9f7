package models

import "time"

type GatewayMode string

const (
	ModeTest GatewayMode = "test"
	ModeLive GatewayMode = "live"
)

type PaymentAction string

const (
	ActionAuthorize        PaymentAction = "authorize"
	ActionAuthorizeCapture PaymentAction = "authorize_capture"
)

// KeyPair is one mode's provider credentials. Secret fields are stored
// encrypted at rest; they only exist in plaintext inside the settings
// service's decrypt boundary.
type KeyPair struct {
	KeyID         string `json:"key_id"`
	KeySecret     string `json:"key_secret"`
	WebhookSecret string `json:"webhook_secret"`
}

func (k KeyPair) IsConfigured() bool {
	return k.KeyID != "" && k.KeySecret != ""
}

// TenantSecrets is the per-tenant gateway configuration record.
type TenantSecrets struct {
	Enabled       bool          `json:"enabled"`
	Provider      string        `json:"provider"`
	Mode          GatewayMode   `json:"mode"`
	Test          KeyPair       `json:"test"`
	Live          KeyPair       `json:"live"`
	PaymentAction PaymentAction `json:"payment_action"`
	AutoRefund    bool          `json:"auto_refund"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ActiveKeys returns the key pair for the currently selected mode.
func (s *TenantSecrets) ActiveKeys() KeyPair {
	if s.Mode == ModeLive {
		return s.Live
	}
	return s.Test
}

// MaskedKeyPair is the API-facing projection of a KeyPair. Secrets are
// reduced to a short prefix plus the last four characters.
type MaskedKeyPair struct {
	KeyID         string `json:"key_id"`
	KeySecret     string `json:"key_secret"`
	WebhookSecret string `json:"webhook_secret"`
	Configured    bool   `json:"configured"`
}

type MaskedSettings struct {
	Enabled       bool          `json:"enabled"`
	Provider      string        `json:"provider"`
	Mode          GatewayMode   `json:"mode"`
	Test          MaskedKeyPair `json:"test"`
	Live          MaskedKeyPair `json:"live"`
	PaymentAction PaymentAction `json:"payment_action"`
	AutoRefund    bool          `json:"auto_refund"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// SettingsUpdate carries a partial settings write. Nil pointers mean
// "leave the stored value alone"; secrets are only rotated when the
// corresponding field is present.
type SettingsUpdate struct {
	Enabled       *bool          `json:"enabled,omitempty"`
	Provider      *string        `json:"provider,omitempty"`
	Mode          *GatewayMode   `json:"mode,omitempty"`
	Test          *KeyPairUpdate `json:"test,omitempty"`
	Live          *KeyPairUpdate `json:"live,omitempty"`
	PaymentAction *PaymentAction `json:"payment_action,omitempty"`
	AutoRefund    *bool          `json:"auto_refund,omitempty"`
}

type KeyPairUpdate struct {
	KeyID         *string `json:"key_id,omitempty"`
	KeySecret     *string `json:"key_secret,omitempty"`
	WebhookSecret *string `json:"webhook_secret,omitempty"`
}
